package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/utils"
	"gorm.io/gorm"
)

// ErrRefreshTokenInvalid covers absent, revoked, expired and already consumed tokens.
var ErrRefreshTokenInvalid = errors.New("refresh token is invalid or expired")

// ClientInfo describes the client behind a request.
type ClientInfo struct {
	IP        string
	UserAgent string
	RequestID string
}

// RefreshTokenStore persists issued refresh tokens by their SHA-256 digest.
type RefreshTokenStore struct {
	db    *gorm.DB
	codec *utils.TokenCodec
}

func NewRefreshTokenStore(db *gorm.DB, codec *utils.TokenCodec) *RefreshTokenStore {
	return &RefreshTokenStore{db: db, codec: codec}
}

// WithTx returns a store bound to tx.
func (s *RefreshTokenStore) WithTx(tx *gorm.DB) *RefreshTokenStore {
	return &RefreshTokenStore{db: tx, codec: s.codec}
}

// Issue signs a new refresh token for userID and stores its digest.
// The returned raw value is never persisted.
func (s *RefreshTokenStore) Issue(userID uint, ttl time.Duration, client ClientInfo) (string, *models.RefreshToken, error) {
	nonce, err := randomHex(32)
	if err != nil {
		return "", nil, err
	}

	raw, err := s.codec.EncodeWithID(userID, utils.TokenTypeRefresh, nonce, ttl)
	if err != nil {
		return "", nil, err
	}

	record := &models.RefreshToken{
		UserID:      userID,
		TokenHash:   HashToken(raw),
		ExpiresAt:   s.codec.Now().Add(ttl).Truncate(time.Second),
		CreatedByIP: client.IP,
		UserAgent:   truncate(client.UserAgent, 255),
	}
	if err := s.db.Create(record).Error; err != nil {
		return "", nil, err
	}

	return raw, record, nil
}

// Validate looks up raw for userID and fails unless the record is unrevoked and unexpired.
func (s *RefreshTokenStore) Validate(userID uint, raw string) (*models.RefreshToken, error) {
	if raw == "" {
		return nil, ErrRefreshTokenInvalid
	}

	var record models.RefreshToken
	err := s.db.Where("user_id = ? AND token_hash = ?", userID, HashToken(raw)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if !record.Active(s.codec.Now()) {
		return nil, ErrRefreshTokenInvalid
	}
	return &record, nil
}

// Consume validates raw and flips it to revoked. Only one caller can win the flip,
// so a token is exchanged at most once even under concurrent requests.
func (s *RefreshTokenStore) Consume(userID uint, raw string) (*models.RefreshToken, error) {
	record, err := s.Validate(userID, raw)
	if err != nil {
		return nil, err
	}

	now := s.codec.Now()
	result := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", record.ID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected != 1 {
		return nil, ErrRefreshTokenInvalid
	}

	record.Revoked = true
	record.RevokedAt = &now
	return record, nil
}

// LinkReplacement records which token superseded record during rotation.
func (s *RefreshTokenStore) LinkReplacement(record *models.RefreshToken, replacementID uint) error {
	record.ReplacedByTokenID = &replacementID
	return s.db.Model(&models.RefreshToken{}).
		Where("id = ?", record.ID).
		Update("replaced_by_token_id", replacementID).Error
}

// Revoke marks record revoked. Revoking twice is a no-op.
func (s *RefreshTokenStore) Revoke(record *models.RefreshToken) error {
	now := s.codec.Now()
	if err := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", record.ID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": now,
		}).Error; err != nil {
		return err
	}
	if !record.Revoked {
		record.Revoked = true
		record.RevokedAt = &now
	}
	return nil
}

// RevokeRaw revokes the record matching raw for userID, if any.
func (s *RefreshTokenStore) RevokeRaw(userID uint, raw string) error {
	if raw == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash = ? AND revoked = ?", userID, HashToken(raw), false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": s.codec.Now(),
		}).Error
}

// RevokeAllFor revokes every outstanding refresh token of userID.
func (s *RefreshTokenStore) RevokeAllFor(userID uint) (int64, error) {
	result := s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": s.codec.Now(),
		})
	return result.RowsAffected, result.Error
}

// HashToken returns the hex SHA-256 digest stored for a raw refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
