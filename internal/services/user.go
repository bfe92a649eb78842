package services

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/utils"
	"github.com/huangang/soundvault/pkg/response"
)

const defaultPhoneRegion = "US"

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserRequest carries user attributes. Nil fields are left unchanged on update.
type UserRequest struct {
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
	Role                 *string `json:"role"`
	FirstName            *string `json:"first_name"`
	LastName             *string `json:"last_name"`
	PhoneNumber          *string `json:"phone_number"`
	Gender               *string `json:"gender"`
	Address              *string `json:"address"`
	DOB                  *string `json:"dob"`
}

// ProfileRequest is what a user may change about itself, including its artist profile.
type ProfileRequest struct {
	Email       *string        `json:"email"`
	FirstName   *string        `json:"first_name"`
	LastName    *string        `json:"last_name"`
	PhoneNumber *string        `json:"phone_number"`
	Gender      *string        `json:"gender"`
	Address     *string        `json:"address"`
	DOB         *string        `json:"dob"`
	Artist      *ArtistRequest `json:"artist"`
}

func (s *UserService) List(actor *models.User, req PageRequest) (*Page[models.User], error) {
	if err := Authorize(actor, ActionIndex, Resource{Kind: KindUser}); err != nil {
		return nil, err
	}
	return Paginate[models.User](s.db.Model(&models.User{}).Preload("Artist").Order("id ASC"), req)
}

func (s *UserService) Get(actor *models.User, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Artist.Genres").First(&user, id).Error; err != nil {
		return nil, findOr404(err, "User")
	}
	if err := Authorize(actor, ActionShow, Resource{Kind: KindUser, OwnerUserID: user.ID}); err != nil {
		return nil, err
	}
	return &user, nil
}

// UnassignedArtists lists users with the artist role that have no artist profile yet.
func (s *UserService) UnassignedArtists(actor *models.User) ([]models.User, error) {
	if err := Authorize(actor, ActionUnassignedArtists, Resource{Kind: KindUser}); err != nil {
		return nil, err
	}
	users := make([]models.User, 0)
	err := s.db.Model(&models.User{}).
		Joins("LEFT JOIN artists ON artists.user_id = users.id").
		Where("users.role = ? AND artists.id IS NULL", models.RoleArtist).
		Order("users.id ASC").
		Find(&users).Error
	return users, err
}

func (s *UserService) Create(actor *models.User, req *UserRequest) (*models.User, error) {
	if err := Authorize(actor, ActionCreate, Resource{Kind: KindUser}); err != nil {
		return nil, err
	}

	user := &models.User{Role: models.RoleArtist}
	if err := s.assign(s.db, user, req, true); err != nil {
		return nil, err
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Update changes a user. Only a super_admin may change roles.
func (s *UserService) Update(actor *models.User, id uint, req *UserRequest) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, findOr404(err, "User")
	}
	if err := Authorize(actor, ActionUpdate, Resource{Kind: KindUser, OwnerUserID: user.ID}); err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != user.Role && !actor.IsSuperAdmin() {
		return nil, response.NewAuthorizationError()
	}

	if err := s.assign(s.db, &user, req, false); err != nil {
		return nil, err
	}
	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes the user with its refresh tokens and artist profile.
// Artists it managed become unmanaged.
func (s *UserService) Delete(actor *models.User, id uint) error {
	var user models.User
	if err := s.db.Preload("Artist").First(&user, id).Error; err != nil {
		return findOr404(err, "User")
	}
	if err := Authorize(actor, ActionDestroy, Resource{Kind: KindUser, OwnerUserID: user.ID}); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if user.Artist != nil {
			if err := deleteArtist(tx, user.Artist); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Artist{}).Where("manager_id = ?", user.ID).Update("manager_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

// UpdateProfile applies req to actor. An artist may also create or edit its own
// artist profile; editing it that way drops any manager assignment.
func (s *UserService) UpdateProfile(actor *models.User, req *ProfileRequest) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Artist").First(&user, actor.ID).Error; err != nil {
		return nil, findOr404(err, "User")
	}

	userReq := &UserRequest{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Gender:      req.Gender,
		Address:     req.Address,
		DOB:         req.DOB,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.assign(tx, &user, userReq, false); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&user).Error; err != nil {
			return err
		}

		if req.Artist == nil || !user.IsArtist() {
			return nil
		}

		artist := user.Artist
		if artist == nil {
			artist = &models.Artist{UserID: user.ID}
		}
		artist.ManagerID = nil
		if err := applyArtistRequest(artist, req.Artist, "artist."); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(artist).Error; err != nil {
			return err
		}
		if req.Artist.Genres != nil {
			if err := replaceArtistGenres(tx, artist, req.Artist.Genres); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Profile(user.ID)
}

// Profile loads a user with its artist profile and genres.
func (s *UserService) Profile(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Artist.Genres").First(&user, userID).Error; err != nil {
		return nil, findOr404(err, "User")
	}
	return &user, nil
}

// assign validates req and copies it onto user. Passwords are required when
// creating and are stored as bcrypt digests.
func (s *UserService) assign(db *gorm.DB, user *models.User, req *UserRequest, creating bool) error {
	var errs fieldErrors

	if req.Email != nil || creating {
		email := ""
		if req.Email != nil {
			email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		switch {
		case email == "":
			errs.add("email", msgBlank)
		case !validEmail(email):
			errs.add("email", "must be a valid email")
		default:
			var count int64
			if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				errs.add("email", msgTaken)
			}
		}
		user.Email = email
	}

	var digest string
	if req.Password != nil || creating {
		password := ""
		if req.Password != nil {
			password = *req.Password
		}
		switch {
		case password == "":
			errs.add("password", msgBlank)
		case len(password) < utils.MinPasswordLength:
			errs.add("password", "is too short (minimum is 8 characters)")
		case !utils.PasswordStrong(password):
			errs.add("password", "must include at least one uppercase, one lowercase, one number, and one special character")
		}
		if req.PasswordConfirmation != nil && *req.PasswordConfirmation != password {
			errs.add("password_confirmation", "doesn't match Password")
		}
		if len(errs) == 0 {
			hash, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			digest = hash
		}
	}

	if req.Role != nil {
		if models.ValidRole(*req.Role) {
			user.Role = *req.Role
		} else {
			errs.add("role", msgNotIncluded)
		}
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}

	if req.Gender != nil {
		switch gender := strings.ToLower(strings.TrimSpace(*req.Gender)); {
		case gender == "":
			user.Gender = nil
		case models.ValidGender(gender):
			user.Gender = &gender
		default:
			errs.add("gender", msgNotIncluded)
		}
	}

	if req.DOB != nil {
		raw := strings.TrimSpace(*req.DOB)
		if raw == "" {
			user.DOB = nil
		} else if dob, err := time.Parse(time.DateOnly, raw); err != nil {
			errs.add("dob", "must be a valid date (YYYY-MM-DD)")
		} else if dob.After(time.Now()) {
			errs.add("dob", "can't be in the future")
		} else {
			d := datatypes.Date(dob)
			user.DOB = &d
		}
	}

	if req.PhoneNumber != nil {
		raw := strings.TrimSpace(*req.PhoneNumber)
		if raw == "" {
			user.PhoneNumber = ""
		} else if phone, ok := utils.NormalizePhone(raw, phoneRegion(db)); ok {
			user.PhoneNumber = phone
		} else {
			errs.add("phone_number", "is not a valid phone number")
		}
	}

	if err := errs.err(); err != nil {
		return err
	}
	if digest != "" {
		user.PasswordDigest = digest
	}
	return nil
}

// phoneRegion reads through db so it also works inside a transaction.
func phoneRegion(db *gorm.DB) string {
	return NewSystemConfigService(db).GetWithDefault("user_phone_region", defaultPhoneRegion)
}
