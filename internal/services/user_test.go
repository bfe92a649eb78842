package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/testutil"
	"github.com/huangang/soundvault/internal/utils"
)

func strPtr(s string) *string { return &s }

func TestUserService_CreateRequiresSuperAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin)
	manager := testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager)

	req := &UserRequest{
		Email:       strPtr("New.Manager@Example.com"),
		Password:    strPtr(testutil.Password),
		Role:        strPtr(models.RoleArtistManager),
		PhoneNumber: strPtr("(650) 253-0000"),
		Gender:      strPtr("Female"),
		DOB:         strPtr("1990-04-12"),
	}

	_, err := svc.Create(manager, req)
	requireAppError(t, err, http.StatusForbidden, "authorization")

	user, err := svc.Create(admin, req)
	require.NoError(t, err)
	require.Equal(t, "new.manager@example.com", user.Email)
	require.Equal(t, models.RoleArtistManager, user.Role)
	require.Equal(t, "+16502530000", user.PhoneNumber)
	require.NotNil(t, user.Gender)
	require.Equal(t, models.GenderFemale, *user.Gender)
	require.NotNil(t, user.DOB)
	require.True(t, utils.CheckPassword(testutil.Password, user.PasswordDigest))
}

func TestUserService_CreateValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	_, err := svc.Create(admin, &UserRequest{
		Email:       strPtr("bad"),
		Role:        strPtr("owner"),
		Gender:      strPtr("robot"),
		DOB:         strPtr("12/04/1990"),
		PhoneNumber: strPtr("12"),
	})
	appErr := requireAppError(t, err, http.StatusUnprocessableEntity, "email")

	fields := make([]string, 0, len(appErr.Errors))
	for _, fe := range appErr.Errors {
		fields = append(fields, fe.Field)
	}
	require.Equal(t, []string{"email", "password", "role", "gender", "dob", "phone_number"}, fields)
}

func TestUserService_UpdateSelfAndRoles(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin)
	artist := testutil.CreateUser(t, db, "artist@example.com", models.RoleArtist)
	other := testutil.CreateUser(t, db, "other@example.com", models.RoleArtist)

	updated, err := svc.Update(artist, artist.ID, &UserRequest{FirstName: strPtr(" Ella "), Gender: strPtr("")})
	require.NoError(t, err)
	require.Equal(t, "Ella", updated.FirstName)
	require.Nil(t, updated.Gender)

	_, err = svc.Update(artist, other.ID, &UserRequest{FirstName: strPtr("x")})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = svc.Update(artist, artist.ID, &UserRequest{Role: strPtr(models.RoleSuperAdmin)})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = svc.Update(artist, artist.ID, &UserRequest{Email: strPtr("OTHER@example.com")})
	requireAppError(t, err, http.StatusUnprocessableEntity, "email")

	promoted, err := svc.Update(admin, artist.ID, &UserRequest{Role: strPtr(models.RoleArtistManager)})
	require.NoError(t, err)
	require.Equal(t, models.RoleArtistManager, promoted.Role)

	_, err = svc.Update(admin, 999, &UserRequest{})
	requireAppError(t, err, http.StatusNotFound, "user")
}

func TestUserService_GetAndList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin)
	artist := testutil.CreateUser(t, db, "artist@example.com", models.RoleArtist)

	got, err := svc.Get(artist, artist.ID)
	require.NoError(t, err)
	require.Equal(t, artist.Email, got.Email)

	_, err = svc.Get(artist, admin.ID)
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = svc.List(artist, PageRequest{})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	page, err := svc.List(admin, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
}

func TestUserService_UnassignedArtists(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	manager := testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager)
	withProfile := testutil.CreateUser(t, db, "signed@example.com", models.RoleArtist)
	testutil.CreateArtist(t, db, withProfile, nil)
	without := testutil.CreateUser(t, db, "free@example.com", models.RoleArtist)

	users, err := svc.UnassignedArtists(manager)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, without.ID, users[0].ID)

	_, err = svc.UnassignedArtists(without)
	requireAppError(t, err, http.StatusForbidden, "authorization")
}

func TestUserService_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin)
	manager := testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager)
	artistUser := testutil.CreateUser(t, db, "artist@example.com", models.RoleArtist)
	artist := testutil.CreateArtist(t, db, artistUser, &manager.ID)

	managed := testutil.CreateUser(t, db, "managed@example.com", models.RoleArtist)
	managedArtist := testutil.CreateArtist(t, db, managed, &manager.ID)

	store := NewRefreshTokenStore(db, utils.NewTokenCodec([]byte("secret")))
	_, _, err := store.Issue(artistUser.ID, 0, ClientInfo{})
	require.NoError(t, err)
	require.NoError(t, replaceArtistGenres(db, artist, []string{"jazz"}))

	requireAppError(t, svc.Delete(managed, artistUser.ID), http.StatusForbidden, "authorization")
	require.NoError(t, svc.Delete(admin, artistUser.ID))

	var count int64
	db.Model(&models.RefreshToken{}).Where("user_id = ?", artistUser.ID).Count(&count)
	require.Zero(t, count)
	db.Model(&models.Artist{}).Where("id = ?", artist.ID).Count(&count)
	require.Zero(t, count)
	db.Table("artist_genres").Where("artist_id = ?", artist.ID).Count(&count)
	require.Zero(t, count)

	require.NoError(t, svc.Delete(manager, manager.ID), "users may delete themselves")
	var reloaded models.Artist
	require.NoError(t, db.First(&reloaded, managedArtist.ID).Error)
	require.Nil(t, reloaded.ManagerID)
}

func TestUserService_UpdateProfile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	manager := testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager)
	artistUser := testutil.CreateUser(t, db, "artist@example.com", models.RoleArtist)
	testutil.CreateArtist(t, db, artistUser, &manager.ID)

	year := 2011
	user, err := svc.UpdateProfile(artistUser, &ProfileRequest{
		LastName: strPtr("Fitzgerald"),
		Artist: &ArtistRequest{
			FirstReleaseYear: &year,
			Bio:              strPtr("First lady of song"),
			Website:          strPtr("https://ella.example.com"),
			Genres:           []string{"Jazz", "swing"},
			SocialMediaLinks: map[string]string{"instagram": "https://instagram.com/ella"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Fitzgerald", user.LastName)
	require.NotNil(t, user.Artist)
	require.Nil(t, user.Artist.ManagerID, "editing through the profile drops the manager")
	require.Equal(t, 2011, *user.Artist.FirstReleaseYear)
	require.Len(t, user.Artist.Genres, 2)
	require.Equal(t, "https://instagram.com/ella", user.Artist.SocialMediaLinks.Data()["instagram"])

	_, err = svc.UpdateProfile(artistUser, &ProfileRequest{Artist: &ArtistRequest{Website: strPtr("ftp://nope")}})
	requireAppError(t, err, http.StatusUnprocessableEntity, "artist.website")

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, artistUser.ID).Error)
	require.Equal(t, "Fitzgerald", reloaded.LastName)
}

func TestUserService_UpdateProfileCreatesArtist(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	artistUser := testutil.CreateUser(t, db, "new@example.com", models.RoleArtist)
	manager := testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager)

	user, err := svc.UpdateProfile(artistUser, &ProfileRequest{Artist: &ArtistRequest{Bio: strPtr("hello")}})
	require.NoError(t, err)
	require.NotNil(t, user.Artist)
	require.Equal(t, "hello", user.Artist.Bio)

	user, err = svc.UpdateProfile(manager, &ProfileRequest{Artist: &ArtistRequest{Bio: strPtr("ignored")}})
	require.NoError(t, err)
	require.Nil(t, user.Artist, "only artists carry an artist profile")
}
