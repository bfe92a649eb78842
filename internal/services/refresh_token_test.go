package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/testutil"
	"github.com/huangang/soundvault/internal/utils"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errRollback = errors.New("rollback")

func newTestStore(t *testing.T) (*RefreshTokenStore, *models.User, *testClock) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := newTestClock()
	codec := utils.NewTokenCodec([]byte("store-test-secret"), utils.WithClock(clock.Now))
	user := testutil.CreateUser(t, db, "store@example.com", models.RoleArtist)
	return NewRefreshTokenStore(db, codec), user, clock
}

func TestRefreshTokenStore_IssuePersistsOnlyHash(t *testing.T) {
	store, user, clock := newTestStore(t)

	raw, record, err := store.Issue(user.ID, time.Hour, ClientInfo{IP: "10.0.0.1", UserAgent: "test-agent"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	var stored models.RefreshToken
	require.NoError(t, store.db.First(&stored, record.ID).Error)
	require.Equal(t, HashToken(raw), stored.TokenHash)
	require.NotEqual(t, raw, stored.TokenHash)
	require.Len(t, stored.TokenHash, 64)
	require.False(t, stored.Revoked)
	require.True(t, stored.ExpiresAt.Equal(clock.Now().Add(time.Hour)))
	require.Equal(t, "10.0.0.1", stored.CreatedByIP)
	require.Equal(t, "test-agent", stored.UserAgent)

	claims, err := store.codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, utils.TokenTypeRefresh, claims.Type)
	require.Equal(t, user.ID, claims.UserID)
	require.Len(t, claims.ID, 64)
}

func TestRefreshTokenStore_IssueUniqueTokens(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw1, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)
	raw2, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	require.NotEqual(t, raw1, raw2)
}

func TestRefreshTokenStore_Validate(t *testing.T) {
	store, user, clock := newTestStore(t)
	other := testutil.CreateUser(t, store.db, "other@example.com", models.RoleArtist)

	raw, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	_, err = store.Validate(user.ID, raw)
	require.NoError(t, err)

	_, err = store.Validate(other.ID, raw)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid, "token must be looked up by owner")

	_, err = store.Validate(user.ID, "unknown")
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)

	_, err = store.Validate(user.ID, "")
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)

	clock.Advance(time.Hour)
	_, err = store.Validate(user.ID, raw)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid, "expires_at <= now must fail")
}

func TestRefreshTokenStore_ConsumeIsSingleUse(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	record, err := store.Consume(user.ID, raw)
	require.NoError(t, err)
	require.True(t, record.Revoked)
	require.NotNil(t, record.RevokedAt)

	_, err = store.Consume(user.ID, raw)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRefreshTokenStore_ConsumeConcurrent(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(user.ID, raw)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrRefreshTokenInvalid)
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestRefreshTokenStore_RevokeIsIdempotent(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw, record, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, store.Revoke(record))
	firstRevokedAt := *record.RevokedAt
	require.NoError(t, store.Revoke(record))
	require.True(t, record.RevokedAt.Equal(firstRevokedAt))

	_, err = store.Validate(user.ID, raw)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)

	var count int64
	store.db.Model(&models.RefreshToken{}).Where("id = ?", record.ID).Count(&count)
	require.Equal(t, int64(1), count, "revoked rows are kept")
}

func TestRefreshTokenStore_RevokeRaw(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, store.RevokeRaw(user.ID, raw))
	require.NoError(t, store.RevokeRaw(user.ID, raw))
	require.NoError(t, store.RevokeRaw(user.ID, ""))
	require.NoError(t, store.RevokeRaw(user.ID, "never-issued"))

	_, err = store.Validate(user.ID, raw)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRefreshTokenStore_RevokeAllFor(t *testing.T) {
	store, user, _ := newTestStore(t)
	other := testutil.CreateUser(t, store.db, "keep@example.com", models.RoleArtist)

	raw1, _, _ := store.Issue(user.ID, time.Hour, ClientInfo{})
	raw2, _, _ := store.Issue(user.ID, time.Hour, ClientInfo{})
	otherRaw, _, _ := store.Issue(other.ID, time.Hour, ClientInfo{})

	n, err := store.RevokeAllFor(user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	for _, raw := range []string{raw1, raw2} {
		_, err := store.Consume(user.ID, raw)
		require.ErrorIs(t, err, ErrRefreshTokenInvalid)
	}

	_, err = store.Validate(other.ID, otherRaw)
	require.NoError(t, err, "other users keep their tokens")
}

func TestRefreshTokenStore_WithTxRollsBack(t *testing.T) {
	store, user, _ := newTestStore(t)

	raw, _, err := store.Issue(user.ID, time.Hour, ClientInfo{})
	require.NoError(t, err)

	err = store.db.Transaction(func(tx *gorm.DB) error {
		if _, err := store.WithTx(tx).Consume(user.ID, raw); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	_, err = store.Validate(user.ID, raw)
	require.NoError(t, err, "consume inside a rolled back transaction must not stick")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		max      int
		expected string
	}{
		{"short", "agent", 10, "agent"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"cut inside rune", "abé", 3, "ab"},
		{"cut after rune", "abéz", 4, "abé"},
		{"cut inside wide rune", "a日本", 3, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			if got != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, expected %q", tt.in, tt.max, got, tt.expected)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) is not valid UTF-8", tt.in, tt.max)
			}
		})
	}
}

func TestRefreshTokenStore_IssueTruncatesUserAgentOnRuneBoundary(t *testing.T) {
	store, user, _ := newTestStore(t)
	agent := strings.Repeat("a", 254) + "é" + "tail"

	_, record, err := store.Issue(user.ID, time.Hour, ClientInfo{UserAgent: agent})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("a", 254), record.UserAgent)
	require.True(t, utf8.ValidString(record.UserAgent))
}
