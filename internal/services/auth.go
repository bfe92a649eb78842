package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/config"
	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/utils"
	"github.com/huangang/soundvault/pkg/logger"
	"github.com/huangang/soundvault/pkg/response"
)

// ErrInvalidAccessToken is returned by Authenticate for any rejected access token.
var ErrInvalidAccessToken = errors.New("invalid or expired access token")

const auditModule = "auth"

var (
	dummyDigest     string
	dummyDigestOnce sync.Once
)

// dummyPasswordDigest gives Login something to compare against when the
// email is unknown, so both failure paths pay for one bcrypt comparison.
func dummyPasswordDigest() string {
	dummyDigestOnce.Do(func() {
		hash, err := utils.HashPassword("soundvault-no-such-user")
		if err != nil {
			logger.Errorf("[Auth] Failed to prepare dummy password digest: %v", err)
			return
		}
		dummyDigest = hash
	})
	return dummyDigest
}

func errLoginFailed() *response.AppError {
	return response.NewAuthenticationError("email_or_password", "Invalid email or password")
}

func errRefreshFailed() *response.AppError {
	return response.NewAuthenticationError("refresh_token", "Invalid or expired refresh token")
}

type AuthService struct {
	db        *gorm.DB
	codec     *utils.TokenCodec
	tokens    *RefreshTokenStore
	users     *UserService
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
	mail      MailQueue
	audit     *AuditLogger
}

// NewAuthService wires the session lifecycle. mail and audit may be nil.
func NewAuthService(db *gorm.DB, codec *utils.TokenCodec, jwtCfg *config.JWTConfig, mail MailQueue, audit *AuditLogger) *AuthService {
	return &AuthService{
		db:        db,
		codec:     codec,
		tokens:    NewRefreshTokenStore(db, codec),
		users:     NewUserService(db),
		jwtConfig: jwtCfg,
		configSvc: NewSystemConfigService(db),
		mail:      mail,
		audit:     audit,
	}
}

// LoginRequest is deliberately unvalidated: every bad input gets the same answer.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	AccessTTL        time.Duration
	RefreshToken     string
	RefreshExpiresAt time.Time
	RefreshTTL       time.Duration
}

type LoginResult struct {
	TokenPair
	User *models.User
}

type ChangePasswordRequest struct {
	OldPassword          string `json:"old_password"`
	NewPassword          string `json:"new_password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// RegisterRequest is the self-service sign up form. The role is always artist.
type RegisterRequest struct {
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
	FirstName            *string `json:"first_name"`
	LastName             *string `json:"last_name"`
	PhoneNumber          *string `json:"phone_number"`
	Gender               *string `json:"gender"`
	Address              *string `json:"address"`
	DOB                  *string `json:"dob"`
}

// Login verifies credentials and issues a token pair. Unknown emails and wrong
// passwords fail with the same error.
func (s *AuthService) Login(req *LoginRequest, client ClientInfo) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	found := false
	if email != "" {
		err := s.db.Preload("Artist.Genres").Where(&models.User{Email: email}).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		found = err == nil
	}

	digest := dummyPasswordDigest()
	if found {
		digest = user.PasswordDigest
	}
	if !utils.CheckPassword(req.Password, digest) || !found {
		s.audit.Warning(auditModule, "login_failed", "Login failed", nil, client, map[string]string{"email": email})
		return nil, errLoginFailed()
	}

	accessTTL, refreshTTL := s.AccessTTL(), s.RefreshTTL()
	var pair *TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		pair, _, err = s.issuePair(s.tokens.WithTx(tx), user.ID, accessTTL, refreshTTL, client)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Info(auditModule, "login", "User logged in", &user.ID, client, nil)
	return &LoginResult{TokenPair: *pair, User: &user}, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token is
// consumed in the same transaction that stores its replacement, so it can be
// exchanged at most once.
func (s *AuthService) Rotate(raw string, client ClientInfo) (*TokenPair, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil || claims.Type != utils.TokenTypeRefresh {
		s.audit.Warning(auditModule, "refresh_rejected", "Refresh token rejected", nil, client, nil)
		return nil, errRefreshFailed()
	}

	accessTTL, refreshTTL := s.AccessTTL(), s.RefreshTTL()
	var pair *TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, claims.UserID).Error; err != nil {
			return err
		}

		store := s.tokens.WithTx(tx)
		old, err := store.Consume(user.ID, raw)
		if err != nil {
			return err
		}

		var replacement *models.RefreshToken
		pair, replacement, err = s.issuePair(store, user.ID, accessTTL, refreshTTL, client)
		if err != nil {
			return err
		}
		return store.LinkReplacement(old, replacement.ID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrRefreshTokenInvalid) {
		s.audit.Warning(auditModule, "refresh_rejected", "Refresh token rejected", &claims.UserID, client, nil)
		return nil, errRefreshFailed()
	}
	if err != nil {
		return nil, err
	}

	s.audit.Info(auditModule, "refresh", "Tokens refreshed", &claims.UserID, client, nil)
	return pair, nil
}

// Logout revokes raw when it belongs to userID. Unknown or already revoked
// tokens are not an error.
func (s *AuthService) Logout(userID uint, raw string, client ClientInfo) error {
	if err := s.tokens.RevokeRaw(userID, raw); err != nil {
		return err
	}
	s.audit.Info(auditModule, "logout", "User logged out", &userID, client, nil)
	return nil
}

// LogoutAll revokes every refresh token of userID.
func (s *AuthService) LogoutAll(userID uint, client ClientInfo) error {
	n, err := s.tokens.RevokeAllFor(userID)
	if err != nil {
		return err
	}
	s.audit.Info(auditModule, "logout_all", "User logged out everywhere", &userID, client, map[string]int64{"revoked": n})
	return nil
}

// Authenticate resolves the user behind an access token. The token must verify,
// be an access token and be unexpired, and its user must still exist.
func (s *AuthService) Authenticate(accessToken string) (*models.User, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil || claims.Type != utils.TokenTypeAccess {
		return nil, ErrInvalidAccessToken
	}

	var user models.User
	err = s.db.Preload("Artist").First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidAccessToken
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates an artist account and queues the verification email.
func (s *AuthService) Register(req *RegisterRequest, client ClientInfo) (*models.User, error) {
	user := &models.User{Role: models.RoleArtist}
	userReq := &UserRequest{
		Email:                &req.Email,
		Password:             &req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		PhoneNumber:          req.PhoneNumber,
		Gender:               req.Gender,
		Address:              req.Address,
		DOB:                  req.DOB,
	}
	if err := s.users.assign(s.db, user, userReq, true); err != nil {
		return nil, err
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	if s.mail != nil {
		task := &MailTask{Type: TaskTypeVerifyEmail, UserID: user.ID, Email: user.Email, Name: user.FullName()}
		if err := s.mail.Enqueue(task); err != nil {
			logger.Warnf("[Auth] Failed to enqueue verify email for user %d: %v", user.ID, err)
		}
	}

	s.audit.Info(auditModule, "register", "User registered", &user.ID, client, nil)
	return user, nil
}

// ChangePassword replaces the password of userID and signs out every session.
func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest, client ClientInfo) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return findOr404(err, "User")
	}

	if !utils.CheckPassword(req.OldPassword, user.PasswordDigest) {
		return response.NewValidationError("old_password", "is incorrect")
	}

	confirmation := req.PasswordConfirmation
	userReq := &UserRequest{Password: &req.NewPassword}
	if confirmation != "" {
		userReq.PasswordConfirmation = &confirmation
	}
	if err := s.users.assign(s.db, &user, userReq, false); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_digest", user.PasswordDigest).Error; err != nil {
			return err
		}
		_, err := s.tokens.WithTx(tx).RevokeAllFor(user.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.audit.Info(auditModule, "change_password", "Password changed", &user.ID, client, nil)
	return nil
}

// CreateSuperAdminIfNotExists seeds the first super_admin from config.
func (s *AuthService) CreateSuperAdminIfNotExists(admin *config.AdminConfig) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where(&models.User{Role: models.RoleSuperAdmin}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if admin.Email == "" || admin.Password == "" {
		logger.Warnf("[Auth] No super admin exists; set admin.email and admin.password to create one")
		return nil
	}

	user := &models.User{Role: models.RoleSuperAdmin, FirstName: "Super", LastName: "Admin"}
	role := models.RoleSuperAdmin
	req := &UserRequest{Email: &admin.Email, Password: &admin.Password, Role: &role}
	if err := s.users.assign(s.db, user, req, true); err != nil {
		return err
	}
	if err := s.db.Create(user).Error; err != nil {
		return err
	}

	logger.Infof("[Auth] Created super admin %s", user.Email)
	return nil
}

// AccessTTL is the access token lifetime, overridable through system config.
func (s *AuthService) AccessTTL() time.Duration {
	minutes := s.configSvc.GetPositiveInt("auth_access_token_ttl_minutes", s.jwtConfig.AccessTTLMinutes)
	return time.Duration(minutes) * time.Minute
}

// RefreshTTL is the refresh token lifetime, overridable through system config.
func (s *AuthService) RefreshTTL() time.Duration {
	hours := s.configSvc.GetPositiveInt("auth_refresh_token_ttl_hours", s.jwtConfig.RefreshTTLHours)
	return time.Duration(hours) * time.Hour
}

// issuePair runs inside the caller's transaction, so it must only touch store.
func (s *AuthService) issuePair(store *RefreshTokenStore, userID uint, accessTTL, refreshTTL time.Duration, client ClientInfo) (*TokenPair, *models.RefreshToken, error) {
	access, err := s.codec.Encode(userID, utils.TokenTypeAccess, accessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, record, err := store.Issue(userID, refreshTTL, client)
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  s.codec.Now().Add(accessTTL),
		AccessTTL:        accessTTL,
		RefreshToken:     refresh,
		RefreshExpiresAt: record.ExpiresAt,
		RefreshTTL:       refreshTTL,
	}, record, nil
}
