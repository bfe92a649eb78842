package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleSuperAdmin    = "super_admin"
	RoleArtistManager = "artist_manager"
	RoleArtist        = "artist"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOthers = "others"
)

var Roles = []string{RoleSuperAdmin, RoleArtistManager, RoleArtist}

// User represents an account. Email is stored lower-cased and trimmed.
type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Email          string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordDigest string          `gorm:"size:255;not null" json:"-"`
	Role           string          `gorm:"size:20;not null;default:artist;index" json:"role"`
	FirstName      string          `gorm:"size:100" json:"first_name"`
	LastName       string          `gorm:"size:100" json:"last_name"`
	PhoneNumber    string          `gorm:"size:32" json:"phone_number"`
	Gender         *string         `gorm:"size:10" json:"gender"`
	Address        string          `gorm:"size:255" json:"address"`
	DOB            *datatypes.Date `gorm:"column:dob" json:"dob"`
	Artist         *Artist         `gorm:"foreignKey:UserID" json:"artist,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) IsSuperAdmin() bool    { return u.Role == RoleSuperAdmin }
func (u *User) IsArtistManager() bool { return u.Role == RoleArtistManager }
func (u *User) IsArtist() bool        { return u.Role == RoleArtist }

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func ValidGender(gender string) bool {
	return gender == GenderMale || gender == GenderFemale || gender == GenderOthers
}
