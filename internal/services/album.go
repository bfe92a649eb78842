package services

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/models"
)

type AlbumService struct {
	db *gorm.DB
}

func NewAlbumService(db *gorm.DB) *AlbumService {
	return &AlbumService{db: db}
}

// AlbumRequest carries album attributes. Nil fields and nil id lists are left unchanged.
type AlbumRequest struct {
	Name        *string  `json:"name"`
	ReleaseDate *string  `json:"release_date"`
	CoverArtURL *string  `json:"cover_art_url"`
	ArtistIDs   []uint   `json:"artist_ids"`
	MusicIDs    []uint   `json:"music_ids"`
	Genres      []string `json:"genres"`
}

func preloadAlbum(query *gorm.DB) *gorm.DB {
	return query.Preload("Artists.User").Preload("Creator.User").Preload("Musics").Preload("Genres")
}

func (s *AlbumService) List(actor *models.User, req PageRequest) (*Page[models.Album], error) {
	if err := Authorize(actor, ActionIndex, Resource{Kind: KindAlbum}); err != nil {
		return nil, err
	}
	page, err := Paginate[models.Album](preloadAlbum(s.db.Model(&models.Album{})).Order("release_date DESC, id DESC"), req)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		fillAlbumNames(&page.Items[i])
	}
	return page, nil
}

func (s *AlbumService) All(actor *models.User) ([]models.Album, error) {
	if err := Authorize(actor, ActionAll, Resource{Kind: KindAlbum}); err != nil {
		return nil, err
	}
	albums := make([]models.Album, 0)
	if err := preloadAlbum(s.db).Order("release_date DESC, id DESC").Find(&albums).Error; err != nil {
		return nil, err
	}
	for i := range albums {
		fillAlbumNames(&albums[i])
	}
	return albums, nil
}

func (s *AlbumService) Get(actor *models.User, id uint) (*models.Album, error) {
	album, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionShow, CreatorResource(KindAlbum, album.Creator)); err != nil {
		return nil, err
	}
	return album, nil
}

// Create records an album by the actor's artist profile. The creator is always
// among the album's artists; unknown artist and track ids are dropped.
func (s *AlbumService) Create(actor *models.User, req *AlbumRequest) (*models.Album, error) {
	if err := Authorize(actor, ActionCreate, Resource{Kind: KindAlbum, OwnerUserID: actor.ID}); err != nil {
		return nil, err
	}

	creatorID := actor.Artist.ID
	album := &models.Album{ArtistID: &creatorID}
	if err := applyAlbumRequest(album, req, true); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Creator", "Artists", "Musics", "Genres").Create(album).Error; err != nil {
			return err
		}
		return setAlbumAssociations(tx, album, req, true)
	})
	if err != nil {
		return nil, err
	}
	return s.load(album.ID)
}

func (s *AlbumService) Update(actor *models.User, id uint, req *AlbumRequest) (*models.Album, error) {
	var album models.Album
	if err := s.db.Preload("Creator").First(&album, id).Error; err != nil {
		return nil, findOr404(err, "Album")
	}
	if err := Authorize(actor, ActionUpdate, CreatorResource(KindAlbum, album.Creator)); err != nil {
		return nil, err
	}
	if err := applyAlbumRequest(&album, req, false); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Creator", "Artists", "Musics", "Genres").Save(&album).Error; err != nil {
			return err
		}
		return setAlbumAssociations(tx, &album, req, false)
	})
	if err != nil {
		return nil, err
	}
	return s.load(album.ID)
}

func (s *AlbumService) Delete(actor *models.User, id uint) error {
	var album models.Album
	if err := s.db.Preload("Creator").First(&album, id).Error; err != nil {
		return findOr404(err, "Album")
	}
	if err := Authorize(actor, ActionDestroy, CreatorResource(KindAlbum, album.Creator)); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"album_artists", "album_musics", "album_genres"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE album_id = ?", album.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Album{}, album.ID).Error
	})
}

func (s *AlbumService) load(id uint) (*models.Album, error) {
	var album models.Album
	if err := preloadAlbum(s.db).First(&album, id).Error; err != nil {
		return nil, findOr404(err, "Album")
	}
	fillAlbumNames(&album)
	return &album, nil
}

func applyAlbumRequest(album *models.Album, req *AlbumRequest, creating bool) error {
	var errs fieldErrors

	if req.Name != nil || creating {
		name := ""
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
		}
		errs.length("name", name, 2, 255)
		album.Name = name
	}

	if req.ReleaseDate != nil || creating {
		raw := ""
		if req.ReleaseDate != nil {
			raw = strings.TrimSpace(*req.ReleaseDate)
		}
		if raw == "" {
			errs.add("release_date", msgBlank)
		} else if date, err := time.Parse(time.DateOnly, raw); err != nil {
			errs.add("release_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			album.ReleaseDate = datatypes.Date(date)
		}
	}

	if req.CoverArtURL != nil {
		cover := strings.TrimSpace(*req.CoverArtURL)
		if cover != "" && !validWebURL(cover) {
			errs.add("cover_art_url", msgInvalidURL)
		} else {
			album.CoverArtURL = cover
		}
	}

	return errs.err()
}

func setAlbumAssociations(tx *gorm.DB, album *models.Album, req *AlbumRequest, creating bool) error {
	if req.ArtistIDs != nil || creating {
		artists, err := collaborators(tx, req.ArtistIDs, album.ArtistID)
		if err != nil {
			return err
		}
		if err := tx.Model(album).Association("Artists").Replace(artists); err != nil {
			return err
		}
	}

	if req.MusicIDs != nil {
		ids, err := existingIDs(tx, &models.Music{}, req.MusicIDs)
		if err != nil {
			return err
		}
		musics := make([]models.Music, len(ids))
		for i, id := range ids {
			musics[i] = models.Music{ID: id}
		}
		if err := tx.Model(album).Association("Musics").Replace(musics); err != nil {
			return err
		}
	}

	if req.Genres != nil {
		genres, err := findOrCreateGenres(tx, req.Genres)
		if err != nil {
			return err
		}
		if err := tx.Model(album).Association("Genres").Replace(genres); err != nil {
			return err
		}
	}
	return nil
}

// collaborators resolves ids to existing artists, appending the creator.
func collaborators(tx *gorm.DB, ids []uint, creatorID *uint) ([]models.Artist, error) {
	wanted := append([]uint(nil), ids...)
	if creatorID != nil {
		wanted = append(wanted, *creatorID)
	}
	valid, err := existingIDs(tx, &models.Artist{}, wanted)
	if err != nil {
		return nil, err
	}
	artists := make([]models.Artist, len(valid))
	for i, id := range valid {
		artists[i] = models.Artist{ID: id}
	}
	return artists, nil
}

func fillAlbumNames(album *models.Album) {
	album.ArtistNames = models.CollaboratorNames(album.Artists, album.Creator)
}
