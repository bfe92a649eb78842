package services

import (
	"strings"

	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/models"
)

type GenreService struct {
	db *gorm.DB
}

func NewGenreService(db *gorm.DB) *GenreService {
	return &GenreService{db: db}
}

type GenreRequest struct {
	Name string `json:"name"`
}

// NormalizeGenreName trims and lower-cases a genre name.
func NormalizeGenreName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *GenreService) List(actor *models.User, req PageRequest) (*Page[models.Genre], error) {
	if err := Authorize(actor, ActionIndex, Resource{Kind: KindGenre}); err != nil {
		return nil, err
	}
	return Paginate[models.Genre](s.db.Model(&models.Genre{}).Order("name ASC"), req)
}

func (s *GenreService) Get(actor *models.User, id uint) (*models.Genre, error) {
	if err := Authorize(actor, ActionShow, Resource{Kind: KindGenre}); err != nil {
		return nil, err
	}
	var genre models.Genre
	if err := s.db.First(&genre, id).Error; err != nil {
		return nil, findOr404(err, "Genre")
	}
	return &genre, nil
}

// Search matches genres whose name contains query, ignoring case.
func (s *GenreService) Search(actor *models.User, query string) ([]models.Genre, error) {
	if err := Authorize(actor, ActionSearch, Resource{Kind: KindGenre}); err != nil {
		return nil, err
	}
	genres := make([]models.Genre, 0)
	err := s.db.Where("LOWER(name) LIKE ?", "%"+NormalizeGenreName(query)+"%").
		Order("name ASC").
		Find(&genres).Error
	return genres, err
}

// Create returns the existing genre when one already has the normalized name.
func (s *GenreService) Create(actor *models.User, req *GenreRequest) (*models.Genre, error) {
	if err := Authorize(actor, ActionCreate, Resource{Kind: KindGenre}); err != nil {
		return nil, err
	}
	genres, err := findOrCreateGenres(s.db, []string{req.Name})
	if err != nil {
		return nil, err
	}
	return &genres[0], nil
}

func (s *GenreService) Update(actor *models.User, id uint, req *GenreRequest) (*models.Genre, error) {
	if err := Authorize(actor, ActionUpdate, Resource{Kind: KindGenre}); err != nil {
		return nil, err
	}

	var genre models.Genre
	if err := s.db.First(&genre, id).Error; err != nil {
		return nil, findOr404(err, "Genre")
	}

	name := NormalizeGenreName(req.Name)
	var errs fieldErrors
	errs.length("name", name, 2, 50)
	if len(errs) == 0 {
		var count int64
		if err := s.db.Model(&models.Genre{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			errs.add("name", msgTaken)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if err := s.db.Model(&genre).Update("name", name).Error; err != nil {
		return nil, err
	}
	return &genre, nil
}

// Delete removes the genre together with its join rows.
func (s *GenreService) Delete(actor *models.User, id uint) error {
	if err := Authorize(actor, ActionDestroy, Resource{Kind: KindGenre}); err != nil {
		return err
	}

	var genre models.Genre
	if err := s.db.First(&genre, id).Error; err != nil {
		return findOr404(err, "Genre")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"artist_genres", "album_genres", "music_genres"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE genre_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&genre).Error
	})
}

// findOrCreateGenres resolves names to genres, creating the missing ones.
// Duplicate names collapse to one genre.
func findOrCreateGenres(db *gorm.DB, names []string) ([]models.Genre, error) {
	genres := make([]models.Genre, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, raw := range names {
		name := NormalizeGenreName(raw)
		if seen[name] {
			continue
		}
		seen[name] = true

		var errs fieldErrors
		errs.length("genres", name, 2, 50)
		if err := errs.err(); err != nil {
			return nil, err
		}

		var genre models.Genre
		if err := db.Where(models.Genre{Name: name}).FirstOrCreate(&genre).Error; err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, nil
}
