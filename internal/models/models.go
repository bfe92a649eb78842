package models

import (
	"time"

	"gorm.io/datatypes"
)

// SocialLinks maps a network name to a profile URL
type SocialLinks = datatypes.JSONType[map[string]string]

func NewSocialLinks(links map[string]string) SocialLinks {
	return datatypes.NewJSONType(links)
}

// Artist is the public profile attached to a user with the artist role
type Artist struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	UserID           uint        `gorm:"uniqueIndex;not null" json:"user_id"`
	User             *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ManagerID        *uint       `gorm:"index" json:"manager_id"`
	Manager          *User       `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	FirstReleaseYear *int        `json:"first_release_year"`
	Bio              string      `gorm:"type:text" json:"bio"`
	Website          string      `gorm:"size:500" json:"website"`
	SocialMediaLinks SocialLinks `json:"social_media_links"`
	PhotoURL         string      `gorm:"size:500" json:"photo_url"`
	Genres           []Genre     `gorm:"many2many:artist_genres;" json:"genres"`
	Albums           []Album     `gorm:"many2many:album_artists;" json:"albums,omitempty"`
	Musics           []Music     `gorm:"many2many:artist_musics;" json:"musics,omitempty"`
	AlbumsReleased   int64       `gorm:"-" json:"no_of_albums_released"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (Artist) TableName() string { return "artists" }

// Album is created by one artist and may list several collaborating artists
type Album struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	ReleaseDate datatypes.Date `gorm:"not null" json:"release_date"`
	CoverArtURL string         `gorm:"size:500" json:"cover_art_url"`
	ArtistID    *uint          `gorm:"index" json:"artist_id"` // creator
	Creator     *Artist        `gorm:"foreignKey:ArtistID" json:"-"`
	Artists     []Artist       `gorm:"many2many:album_artists;" json:"artists"`
	Musics      []Music        `gorm:"many2many:album_musics;" json:"musics"`
	Genres      []Genre        `gorm:"many2many:album_genres;" json:"genres"`
	ArtistNames []string       `gorm:"-" json:"artist_names"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Album) TableName() string { return "albums" }

// Music is a single track
type Music struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	AudioFileURL string    `gorm:"size:500" json:"audio_file_url"`
	CoverArtURL  string    `gorm:"size:500" json:"cover_art_url"`
	ArtistID     *uint     `gorm:"index" json:"artist_id"` // creator
	Creator      *Artist   `gorm:"foreignKey:ArtistID" json:"-"`
	Artists      []Artist  `gorm:"many2many:artist_musics;" json:"artists"`
	Albums       []Album   `gorm:"many2many:album_musics;" json:"albums"`
	Genres       []Genre   `gorm:"many2many:music_genres;" json:"genres"`
	ArtistNames  []string  `gorm:"-" json:"artist_names"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Music) TableName() string { return "musics" }

// Genre names are unique and lower-cased
type Genre struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:50;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Genre) TableName() string { return "genres" }

// CollaboratorNames lists the full names of artists, appending the creator
// when it is not already among them. Artists without a loaded user are skipped.
func CollaboratorNames(artists []Artist, creator *Artist) []string {
	names := make([]string, 0, len(artists)+1)
	seen := make(map[uint]bool, len(artists))
	for _, a := range artists {
		seen[a.ID] = true
		if a.User != nil {
			names = append(names, a.User.FullName())
		}
	}
	if creator != nil && !seen[creator.ID] && creator.User != nil {
		names = append(names, creator.User.FullName())
	}
	return names
}
