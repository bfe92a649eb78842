package services

import (
	"strings"

	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/models"
)

type MusicService struct {
	db *gorm.DB
}

func NewMusicService(db *gorm.DB) *MusicService {
	return &MusicService{db: db}
}

// MusicRequest carries track attributes. Nil fields and nil id lists are left unchanged.
type MusicRequest struct {
	Title        *string  `json:"title"`
	AudioFileURL *string  `json:"audio_file_url"`
	CoverArtURL  *string  `json:"cover_art_url"`
	ArtistIDs    []uint   `json:"artist_ids"`
	AlbumIDs     []uint   `json:"album_ids"`
	Genres       []string `json:"genres"`
}

func preloadMusic(query *gorm.DB) *gorm.DB {
	return query.Preload("Artists.User").Preload("Creator.User").Preload("Albums").Preload("Genres")
}

func (s *MusicService) List(actor *models.User, req PageRequest) (*Page[models.Music], error) {
	if err := Authorize(actor, ActionIndex, Resource{Kind: KindMusic}); err != nil {
		return nil, err
	}
	page, err := Paginate[models.Music](preloadMusic(s.db.Model(&models.Music{})).Order("id DESC"), req)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		fillMusicNames(&page.Items[i])
	}
	return page, nil
}

func (s *MusicService) All(actor *models.User) ([]models.Music, error) {
	if err := Authorize(actor, ActionAll, Resource{Kind: KindMusic}); err != nil {
		return nil, err
	}
	musics := make([]models.Music, 0)
	if err := preloadMusic(s.db).Order("id DESC").Find(&musics).Error; err != nil {
		return nil, err
	}
	for i := range musics {
		fillMusicNames(&musics[i])
	}
	return musics, nil
}

func (s *MusicService) Get(actor *models.User, id uint) (*models.Music, error) {
	music, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionShow, CreatorResource(KindMusic, music.Creator)); err != nil {
		return nil, err
	}
	return music, nil
}

// Create records a track by the actor's artist profile, keeping the creator
// among its artists.
func (s *MusicService) Create(actor *models.User, req *MusicRequest) (*models.Music, error) {
	if err := Authorize(actor, ActionCreate, Resource{Kind: KindMusic, OwnerUserID: actor.ID}); err != nil {
		return nil, err
	}

	creatorID := actor.Artist.ID
	music := &models.Music{ArtistID: &creatorID}
	if err := applyMusicRequest(music, req, true); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Creator", "Artists", "Albums", "Genres").Create(music).Error; err != nil {
			return err
		}
		return setMusicAssociations(tx, music, req, true)
	})
	if err != nil {
		return nil, err
	}
	return s.load(music.ID)
}

func (s *MusicService) Update(actor *models.User, id uint, req *MusicRequest) (*models.Music, error) {
	var music models.Music
	if err := s.db.Preload("Creator").First(&music, id).Error; err != nil {
		return nil, findOr404(err, "Music")
	}
	if err := Authorize(actor, ActionUpdate, CreatorResource(KindMusic, music.Creator)); err != nil {
		return nil, err
	}
	if err := applyMusicRequest(&music, req, false); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Creator", "Artists", "Albums", "Genres").Save(&music).Error; err != nil {
			return err
		}
		return setMusicAssociations(tx, &music, req, false)
	})
	if err != nil {
		return nil, err
	}
	return s.load(music.ID)
}

func (s *MusicService) Delete(actor *models.User, id uint) error {
	var music models.Music
	if err := s.db.Preload("Creator").First(&music, id).Error; err != nil {
		return findOr404(err, "Music")
	}
	if err := Authorize(actor, ActionDestroy, CreatorResource(KindMusic, music.Creator)); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"artist_musics", "album_musics", "music_genres"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE music_id = ?", music.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Music{}, music.ID).Error
	})
}

func (s *MusicService) load(id uint) (*models.Music, error) {
	var music models.Music
	if err := preloadMusic(s.db).First(&music, id).Error; err != nil {
		return nil, findOr404(err, "Music")
	}
	fillMusicNames(&music)
	return &music, nil
}

func applyMusicRequest(music *models.Music, req *MusicRequest, creating bool) error {
	var errs fieldErrors

	if req.Title != nil || creating {
		title := ""
		if req.Title != nil {
			title = strings.TrimSpace(*req.Title)
		}
		errs.length("title", title, 2, 255)
		music.Title = title
	}
	if req.AudioFileURL != nil {
		audio := strings.TrimSpace(*req.AudioFileURL)
		if audio != "" && !validWebURL(audio) {
			errs.add("audio_file_url", msgInvalidURL)
		} else {
			music.AudioFileURL = audio
		}
	}
	if req.CoverArtURL != nil {
		cover := strings.TrimSpace(*req.CoverArtURL)
		if cover != "" && !validWebURL(cover) {
			errs.add("cover_art_url", msgInvalidURL)
		} else {
			music.CoverArtURL = cover
		}
	}

	return errs.err()
}

func setMusicAssociations(tx *gorm.DB, music *models.Music, req *MusicRequest, creating bool) error {
	if req.ArtistIDs != nil || creating {
		artists, err := collaborators(tx, req.ArtistIDs, music.ArtistID)
		if err != nil {
			return err
		}
		if err := tx.Model(music).Association("Artists").Replace(artists); err != nil {
			return err
		}
	}

	if req.AlbumIDs != nil {
		ids, err := existingIDs(tx, &models.Album{}, req.AlbumIDs)
		if err != nil {
			return err
		}
		albums := make([]models.Album, len(ids))
		for i, id := range ids {
			albums[i] = models.Album{ID: id}
		}
		if err := tx.Model(music).Association("Albums").Replace(albums); err != nil {
			return err
		}
	}

	if req.Genres != nil {
		genres, err := findOrCreateGenres(tx, req.Genres)
		if err != nil {
			return err
		}
		if err := tx.Model(music).Association("Genres").Replace(genres); err != nil {
			return err
		}
	}
	return nil
}

func fillMusicNames(music *models.Music) {
	music.ArtistNames = models.CollaboratorNames(music.Artists, music.Creator)
}
