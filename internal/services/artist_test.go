package services

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/testutil"
)

type artistFixture struct {
	db           *gorm.DB
	svc          *ArtistService
	admin        *models.User
	manager      *models.User
	otherManager *models.User
	artistUser   *models.User
	artist       *models.Artist
}

func newArtistFixture(t *testing.T) *artistFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &artistFixture{
		db:           db,
		svc:          NewArtistService(db),
		admin:        testutil.CreateUser(t, db, "admin@example.com", models.RoleSuperAdmin),
		manager:      testutil.CreateUser(t, db, "manager@example.com", models.RoleArtistManager),
		otherManager: testutil.CreateUser(t, db, "other.manager@example.com", models.RoleArtistManager),
		artistUser:   testutil.CreateUser(t, db, "artist@example.com", models.RoleArtist),
	}
	f.artist = testutil.CreateArtist(t, db, f.artistUser, &f.manager.ID)
	return f
}

func TestArtistService_ListIsScoped(t *testing.T) {
	f := newArtistFixture(t)
	loner := testutil.CreateUser(t, f.db, "loner@example.com", models.RoleArtist)
	testutil.CreateArtist(t, f.db, loner, nil)

	page, err := f.svc.List(f.admin, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)

	page, err = f.svc.List(f.manager, PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Equal(t, f.artist.ID, page.Items[0].ID)
	require.NotNil(t, page.Items[0].User)

	page, err = f.svc.List(f.otherManager, PageRequest{})
	require.NoError(t, err)
	require.Zero(t, page.Total)

	_, err = f.svc.List(f.artistUser, PageRequest{})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	all, err := f.svc.All(f.artistUser)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestArtistService_MyArtists(t *testing.T) {
	f := newArtistFixture(t)

	artists, err := f.svc.MyArtists(f.manager)
	require.NoError(t, err)
	require.Len(t, artists, 1)

	_, err = f.svc.MyArtists(f.admin)
	requireAppError(t, err, http.StatusForbidden, "authorization")
}

func TestArtistService_CreateByRole(t *testing.T) {
	f := newArtistFixture(t)
	newcomer := testutil.CreateUser(t, f.db, "newcomer@example.com", models.RoleArtist)
	signed := testutil.CreateUser(t, f.db, "signed@example.com", models.RoleArtist)
	third := testutil.CreateUser(t, f.db, "third@example.com", models.RoleArtist)

	own, err := f.svc.Create(newcomer, &ArtistRequest{Bio: strPtr("self made"), ManagerID: &f.manager.ID, Genres: []string{"Indie"}})
	require.NoError(t, err)
	require.Equal(t, newcomer.ID, own.UserID)
	require.Nil(t, own.ManagerID, "artists cannot pick a manager")
	require.Len(t, own.Genres, 1)

	managed, err := f.svc.Create(f.manager, &ArtistRequest{UserID: &signed.ID})
	require.NoError(t, err)
	require.NotNil(t, managed.ManagerID)
	require.Equal(t, f.manager.ID, *managed.ManagerID)

	byAdmin, err := f.svc.Create(f.admin, &ArtistRequest{UserID: &third.ID, ManagerID: &f.otherManager.ID})
	require.NoError(t, err)
	require.Equal(t, f.otherManager.ID, *byAdmin.ManagerID)

	_, err = f.svc.Create(f.artistUser, &ArtistRequest{})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = f.svc.Create(f.manager, &ArtistRequest{UserID: &signed.ID})
	requireAppError(t, err, http.StatusUnprocessableEntity, "user_id")

	_, err = f.svc.Create(f.manager, &ArtistRequest{UserID: &f.otherManager.ID})
	requireAppError(t, err, http.StatusUnprocessableEntity, "user_id")

	_, err = f.svc.Create(f.admin, &ArtistRequest{UserID: &third.ID, ManagerID: &f.admin.ID})
	require.Error(t, err)
}

func TestArtistService_UpdateAndDelete(t *testing.T) {
	f := newArtistFixture(t)

	updated, err := f.svc.Update(f.manager, f.artist.ID, &ArtistRequest{Bio: strPtr("managed bio"), ManagerID: &f.otherManager.ID})
	require.NoError(t, err)
	require.Equal(t, "managed bio", updated.Bio)
	require.Equal(t, f.manager.ID, *updated.ManagerID, "only super admins move artists between managers")

	_, err = f.svc.Update(f.otherManager, f.artist.ID, &ArtistRequest{Bio: strPtr("hijack")})
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = f.svc.Update(f.artistUser, f.artist.ID, &ArtistRequest{Bio: strPtr(strings.Repeat("a", 1001))})
	requireAppError(t, err, http.StatusUnprocessableEntity, "bio")

	_, err = f.svc.Update(f.artistUser, 999, &ArtistRequest{})
	appErr := requireAppError(t, err, http.StatusNotFound, "artist")
	require.Equal(t, "Artist not found", appErr.Errors[0].Message)

	creator := f.artist.ID
	album := &models.Album{Name: "Kept", ArtistID: &creator}
	require.NoError(t, f.db.Omit(clause.Associations).Create(album).Error)

	require.NoError(t, f.svc.Delete(f.artistUser, f.artist.ID))

	var reloaded models.Album
	require.NoError(t, f.db.First(&reloaded, album.ID).Error)
	require.Nil(t, reloaded.ArtistID, "albums survive their creator")
}

func TestArtistService_AssignManager(t *testing.T) {
	f := newArtistFixture(t)

	_, err := f.svc.AssignManager(f.manager, f.artist.ID, f.otherManager.ID)
	requireAppError(t, err, http.StatusForbidden, "authorization")

	_, err = f.svc.AssignManager(f.admin, f.artist.ID, f.artistUser.ID)
	appErr := requireAppError(t, err, http.StatusNotFound, "manager_id")
	require.Equal(t, "Manager not found or invalid role", appErr.Errors[0].Message)

	artist, err := f.svc.AssignManager(f.admin, f.artist.ID, f.otherManager.ID)
	require.NoError(t, err)
	require.Equal(t, f.otherManager.ID, *artist.ManagerID)
}

func TestArtistService_PublicShow(t *testing.T) {
	f := newArtistFixture(t)
	require.NoError(t, replaceArtistGenres(f.db, f.artist, []string{"soul"}))

	public, err := f.svc.PublicShow(f.otherManager, f.artist.ID)
	require.NoError(t, err)
	require.Equal(t, f.artist.ID, public.ID)
	require.Equal(t, f.artistUser.FullName(), public.UserName)
	require.Len(t, public.Genres, 1)

	_, err = f.svc.PublicShow(f.otherManager, 999)
	requireAppError(t, err, http.StatusNotFound, "artist")
}

func TestArtistService_AlbumCount(t *testing.T) {
	f := newArtistFixture(t)
	creator := f.artist.ID
	for _, name := range []string{"One", "Two"} {
		album := &models.Album{Name: name, ArtistID: &creator}
		require.NoError(t, f.db.Omit(clause.Associations).Create(album).Error)
		require.NoError(t, f.db.Exec("INSERT INTO album_artists (album_id, artist_id) VALUES (?, ?)", album.ID, f.artist.ID).Error)
	}

	artists, err := f.svc.MyArtists(f.manager)
	require.NoError(t, err)
	require.Equal(t, int64(2), artists[0].AlbumsReleased)
}

func TestArtistService_ExportCSV(t *testing.T) {
	f := newArtistFixture(t)
	require.NoError(t, f.db.Model(f.artist).Update("website", "https://artist.example.com").Error)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCSV(f.manager, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, CSVHeaders, records[0])
	require.Equal(t, []string{
		"Test", "artist", "artist@example.com", "artist", "null",
		strconv.FormatUint(uint64(f.manager.ID), 10),
		strconv.FormatUint(uint64(f.artistUser.ID), 10),
		"https://artist.example.com",
	}, records[1])

	requireAppError(t, f.svc.ExportCSV(f.artistUser, &buf), http.StatusForbidden, "authorization")
}

func TestArtistService_ImportCSV(t *testing.T) {
	f := newArtistFixture(t)

	input := strings.Join([]string{
		strings.Join(CSVHeaders, ","),
		"Test,artist,artist@example.com,artist,Updated bio,null,4,https://new.example.com",
		"Nina,Simone,nina@example.com,null,Pianist,null,null,null",
		"Bad,Row,not-an-email,artist,null,null,null,null",
		"Mgr,Row,manager@example.com,artist_manager,null,null,null,null",
	}, "\n")

	result, err := f.svc.ImportCSV(f.manager, strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 2)
	require.Equal(t, "not-an-email", result.Errors[0].Row["Email"])

	var existing models.Artist
	require.NoError(t, f.db.First(&existing, f.artist.ID).Error)
	require.Equal(t, "Updated bio", existing.Bio)
	require.Equal(t, "https://new.example.com", existing.Website)

	var nina models.User
	require.NoError(t, f.db.Preload("Artist").Where("email = ?", "nina@example.com").First(&nina).Error)
	require.Equal(t, models.RoleArtist, nina.Role)
	require.NotNil(t, nina.Artist)
	require.Equal(t, "Pianist", nina.Artist.Bio)
	require.NotNil(t, nina.Artist.ManagerID)
	require.Equal(t, f.manager.ID, *nina.Artist.ManagerID, "imports by a manager are managed by it")
}

func TestArtistService_ImportCSVRejectsBinary(t *testing.T) {
	f := newArtistFixture(t)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	_, err := f.svc.ImportCSV(f.admin, bytes.NewReader(png))
	requireAppError(t, err, http.StatusUnprocessableEntity, "file")

	_, err = f.svc.ImportCSV(f.artistUser, strings.NewReader("Email\n"))
	requireAppError(t, err, http.StatusForbidden, "authorization")
}
