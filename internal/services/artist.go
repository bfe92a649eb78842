package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/utils"
	"github.com/huangang/soundvault/pkg/response"
)

// CSVHeaders is the column layout shared by export and import.
var CSVHeaders = []string{"First Name", "Last Name", "Email", "Role", "Bio", "Manager ID", "User Id", "Website"}

const (
	csvNull       = "null"
	maxCSVUpload  = 5 << 20
	maxBioLength  = 1000
	firstYearSeen = 1900
)

type ArtistService struct {
	db *gorm.DB
}

func NewArtistService(db *gorm.DB) *ArtistService {
	return &ArtistService{db: db}
}

// ArtistRequest carries artist profile attributes. Nil fields are left unchanged.
// UserID and ManagerID are honored only for roles allowed to set them.
type ArtistRequest struct {
	UserID           *uint             `json:"user_id"`
	ManagerID        *uint             `json:"manager_id"`
	FirstReleaseYear *int              `json:"first_release_year"`
	Bio              *string           `json:"bio"`
	Website          *string           `json:"website"`
	PhotoURL         *string           `json:"photo_url"`
	SocialMediaLinks map[string]string `json:"social_media_links"`
	Genres           []string          `json:"genres"`
}

type AssignManagerRequest struct {
	ManagerID uint `json:"manager_id"`
}

// PublicArtist is the profile shown to any signed-in user.
type PublicArtist struct {
	ID               uint           `json:"id"`
	FirstReleaseYear *int           `json:"first_release_year"`
	Bio              string         `json:"bio"`
	Website          string         `json:"website"`
	PhotoURL         string         `json:"photo_url"`
	Genres           []models.Genre `json:"genres"`
	UserName         string         `json:"user_name"`
}

// ImportResult reports a CSV import. Rows that failed are listed with their errors.
type ImportResult struct {
	Imported int              `json:"imported"`
	Errors   []ImportRowError `json:"errors"`
}

type ImportRowError struct {
	Row    map[string]string `json:"row"`
	Errors []string          `json:"errors"`
}

// scope restricts a query to the artists actor may list.
func (s *ArtistService) scope(actor *models.User) *gorm.DB {
	query := s.db.Model(&models.Artist{})
	switch {
	case actor.IsSuperAdmin():
		return query
	case actor.IsArtistManager():
		return query.Where("manager_id = ?", actor.ID)
	default:
		return query.Where("user_id = ?", actor.ID)
	}
}

func preloadArtist(query *gorm.DB) *gorm.DB {
	return query.Preload("User").Preload("Manager").Preload("Genres").Preload("Albums").Preload("Musics")
}

func (s *ArtistService) List(actor *models.User, req PageRequest) (*Page[models.Artist], error) {
	if err := Authorize(actor, ActionIndex, Resource{Kind: KindArtist}); err != nil {
		return nil, err
	}
	page, err := Paginate[models.Artist](preloadArtist(s.scope(actor)).Order("artists.id ASC"), req)
	if err != nil {
		return nil, err
	}
	return page, fillAlbumCounts(s.db, page.Items)
}

// All lists every artist regardless of the actor's scope.
func (s *ArtistService) All(actor *models.User) ([]models.Artist, error) {
	if err := Authorize(actor, ActionAll, Resource{Kind: KindArtist}); err != nil {
		return nil, err
	}
	artists := make([]models.Artist, 0)
	if err := preloadArtist(s.db).Order("id ASC").Find(&artists).Error; err != nil {
		return nil, err
	}
	return artists, fillAlbumCounts(s.db, artists)
}

// MyArtists lists the artists managed by actor.
func (s *ArtistService) MyArtists(actor *models.User) ([]models.Artist, error) {
	if err := Authorize(actor, ActionMyArtists, Resource{Kind: KindArtist}); err != nil {
		return nil, err
	}
	artists := make([]models.Artist, 0)
	if err := preloadArtist(s.scope(actor)).Order("artists.id ASC").Find(&artists).Error; err != nil {
		return nil, err
	}
	return artists, fillAlbumCounts(s.db, artists)
}

func (s *ArtistService) PublicShow(actor *models.User, id uint) (*PublicArtist, error) {
	var artist models.Artist
	if err := s.db.Preload("User").Preload("Genres").First(&artist, id).Error; err != nil {
		return nil, findOr404(err, "Artist")
	}
	if err := Authorize(actor, ActionPublicShow, ArtistResource(&artist)); err != nil {
		return nil, err
	}

	public := &PublicArtist{
		ID:               artist.ID,
		FirstReleaseYear: artist.FirstReleaseYear,
		Bio:              artist.Bio,
		Website:          artist.Website,
		PhotoURL:         artist.PhotoURL,
		Genres:           artist.Genres,
	}
	if artist.User != nil {
		public.UserName = artist.User.FullName()
	}
	return public, nil
}

// Create builds an artist profile. An artist creates its own unmanaged profile;
// a manager creates profiles it manages; a super_admin names both user and manager.
func (s *ArtistService) Create(actor *models.User, req *ArtistRequest) (*models.Artist, error) {
	artist := &models.Artist{}
	switch {
	case actor.IsArtist():
		artist.UserID = actor.ID
	case actor.IsArtistManager():
		if req.UserID != nil {
			artist.UserID = *req.UserID
		}
		managerID := actor.ID
		artist.ManagerID = &managerID
	default:
		if req.UserID != nil {
			artist.UserID = *req.UserID
		}
		artist.ManagerID = req.ManagerID
	}

	if err := Authorize(actor, ActionCreate, ArtistResource(artist)); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var errs fieldErrors
		if err := checkArtistOwner(tx, artist.UserID, 0, &errs); err != nil {
			return err
		}
		if actor.IsSuperAdmin() {
			if err := checkManager(tx, artist.ManagerID, &errs); err != nil {
				return err
			}
		}
		if err := applyArtistRequest(artist, req, ""); err != nil {
			var appErr *response.AppError
			if !errors.As(err, &appErr) {
				return err
			}
			errs = append(errs, appErr.Errors...)
		}
		if err := errs.err(); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(artist).Error; err != nil {
			return err
		}
		if req.Genres != nil {
			return replaceArtistGenres(tx, artist, req.Genres)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(artist.ID)
}

func (s *ArtistService) Update(actor *models.User, id uint, req *ArtistRequest) (*models.Artist, error) {
	var artist models.Artist
	if err := s.db.First(&artist, id).Error; err != nil {
		return nil, findOr404(err, "Artist")
	}
	if err := Authorize(actor, ActionUpdate, ArtistResource(&artist)); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var errs fieldErrors
		if actor.IsSuperAdmin() && req.ManagerID != nil {
			managerID := *req.ManagerID
			if managerID == 0 {
				artist.ManagerID = nil
			} else {
				artist.ManagerID = &managerID
				if err := checkManager(tx, artist.ManagerID, &errs); err != nil {
					return err
				}
			}
		}
		if err := applyArtistRequest(&artist, req, ""); err != nil {
			var appErr *response.AppError
			if !errors.As(err, &appErr) {
				return err
			}
			errs = append(errs, appErr.Errors...)
		}
		if err := errs.err(); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&artist).Error; err != nil {
			return err
		}
		if req.Genres != nil {
			return replaceArtistGenres(tx, &artist, req.Genres)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(artist.ID)
}

func (s *ArtistService) Delete(actor *models.User, id uint) error {
	var artist models.Artist
	if err := s.db.First(&artist, id).Error; err != nil {
		return findOr404(err, "Artist")
	}
	if err := Authorize(actor, ActionDestroy, ArtistResource(&artist)); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteArtist(tx, &artist)
	})
}

// AssignManager puts the artist under the artist_manager managerID.
func (s *ArtistService) AssignManager(actor *models.User, id uint, managerID uint) (*models.Artist, error) {
	var artist models.Artist
	if err := s.db.First(&artist, id).Error; err != nil {
		return nil, findOr404(err, "Artist")
	}
	if err := Authorize(actor, ActionAssignManager, ArtistResource(&artist)); err != nil {
		return nil, err
	}

	var manager models.User
	err := s.db.Where(&models.User{ID: managerID, Role: models.RoleArtistManager}).First(&manager).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || managerID == 0 {
		return nil, &response.AppError{
			HTTPStatus: http.StatusNotFound,
			Errors: []response.FieldError{{
				Field:   "manager_id",
				Message: "Manager not found or invalid role",
				Type:    response.TypeNotFound,
			}},
		}
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&artist).Update("manager_id", manager.ID).Error; err != nil {
		return nil, err
	}
	return s.load(artist.ID)
}

// ExportCSV writes the artists actor may list to w, one row per artist.
func (s *ArtistService) ExportCSV(actor *models.User, w io.Writer) error {
	if err := Authorize(actor, ActionCSVExport, Resource{Kind: KindArtist}); err != nil {
		return err
	}

	var artists []models.Artist
	if err := s.scope(actor).Preload("User").Order("artists.id ASC").Find(&artists).Error; err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeaders); err != nil {
		return err
	}
	for _, a := range artists {
		record := []string{csvNull, csvNull, csvNull, csvNull, orNull(a.Bio), csvNull, strconv.FormatUint(uint64(a.UserID), 10), orNull(a.Website)}
		if a.User != nil {
			record[0] = orNull(a.User.FirstName)
			record[1] = orNull(a.User.LastName)
			record[2] = orNull(a.User.Email)
			record[3] = orNull(a.User.Role)
		}
		if a.ManagerID != nil {
			record[5] = strconv.FormatUint(uint64(*a.ManagerID), 10)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV reads rows in the export layout. Unknown emails become new users
// with a random password; each row then creates or updates that user's artist.
// A failing row is reported and does not stop the import.
func (s *ArtistService) ImportCSV(actor *models.User, r io.Reader) (*ImportResult, error) {
	if err := Authorize(actor, ActionCSVImport, Resource{Kind: KindArtist}); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxCSVUpload+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxCSVUpload {
		return nil, response.NewValidationError("file", "is too big. Max size is 5MB")
	}
	if !isCSV(data) {
		return nil, response.NewValidationError("file", "must be a CSV file")
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &ImportResult{Errors: []ImportRowError{}}, nil
	}
	if err != nil {
		return nil, response.NewValidationError("file", "is not valid CSV")
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := columns["Email"]; !ok {
		return nil, response.NewValidationError("file", "is missing the Email column")
	}

	result := &ImportResult{Errors: []ImportRowError{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, response.NewValidationError("file", "is not valid CSV")
		}

		row := make(map[string]string, len(header))
		for name, i := range columns {
			if i < len(record) {
				row[name] = fromNull(record[i])
			}
		}

		if err := s.importRow(actor, row); err != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: row, Errors: errorMessages(err)})
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (s *ArtistService) importRow(actor *models.User, row map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		email := strings.ToLower(strings.TrimSpace(row["Email"]))
		if email == "" || !validEmail(email) {
			return response.NewValidationError("email", "must be a valid email")
		}

		var user models.User
		err := tx.Where(&models.User{Email: email}).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role := row["Role"]
			if role == "" {
				role = models.RoleArtist
			}
			if !models.ValidRole(role) {
				return response.NewValidationError("role", msgNotIncluded)
			}
			password, err := randomHex(16)
			if err != nil {
				return err
			}
			// A mixed-class suffix keeps the random password valid for the strength rules.
			digest, err := utils.HashPassword(password + "Aa1!")
			if err != nil {
				return err
			}
			user = models.User{
				Email:          email,
				PasswordDigest: digest,
				Role:           role,
				FirstName:      row["First Name"],
				LastName:       row["Last Name"],
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var artist models.Artist
		if err := tx.Where(&models.Artist{UserID: user.ID}).FirstOrInit(&artist).Error; err != nil {
			return err
		}
		if artist.ID != 0 && !Can(actor, ActionUpdate, ArtistResource(&artist)) {
			return response.NewAuthorizationError()
		}
		var ownerErrs fieldErrors
		if err := checkArtistOwner(tx, user.ID, artist.ID, &ownerErrs); err != nil {
			return err
		}
		if err := ownerErrs.err(); err != nil {
			return err
		}

		bio, website := row["Bio"], row["Website"]
		req := &ArtistRequest{Bio: &bio, Website: &website}
		if err := applyArtistRequest(&artist, req, ""); err != nil {
			return err
		}

		switch {
		case actor.IsArtistManager():
			managerID := actor.ID
			artist.ManagerID = &managerID
		case row["Manager ID"] != "":
			id, err := strconv.ParseUint(row["Manager ID"], 10, 64)
			if err != nil {
				return response.NewValidationError("manager_id", "is not a number")
			}
			managerID := uint(id)
			artist.ManagerID = &managerID
			var errs fieldErrors
			if err := checkManager(tx, artist.ManagerID, &errs); err != nil {
				return err
			}
			if err := errs.err(); err != nil {
				return err
			}
		}

		return tx.Omit(clause.Associations).Save(&artist).Error
	})
}

func (s *ArtistService) load(id uint) (*models.Artist, error) {
	var artist models.Artist
	if err := preloadArtist(s.db).First(&artist, id).Error; err != nil {
		return nil, findOr404(err, "Artist")
	}
	artists := []models.Artist{artist}
	if err := fillAlbumCounts(s.db, artists); err != nil {
		return nil, err
	}
	return &artists[0], nil
}

// applyArtistRequest validates and copies the profile fields of req onto artist.
// prefix is prepended to field names in validation errors.
func applyArtistRequest(artist *models.Artist, req *ArtistRequest, prefix string) error {
	var errs fieldErrors

	if req.FirstReleaseYear != nil {
		year := *req.FirstReleaseYear
		if year < firstYearSeen || year > time.Now().Year()+1 {
			errs.add(prefix+"first_release_year", "must be a valid year")
		} else {
			artist.FirstReleaseYear = &year
		}
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			errs.add(prefix+"bio", fmt.Sprintf("is too long (maximum is %d characters)", maxBioLength))
		} else {
			artist.Bio = bio
		}
	}
	if req.Website != nil {
		website := strings.TrimSpace(*req.Website)
		if website != "" && !validWebURL(website) {
			errs.add(prefix+"website", msgInvalidURL)
		} else {
			artist.Website = website
		}
	}
	if req.PhotoURL != nil {
		photo := strings.TrimSpace(*req.PhotoURL)
		if photo != "" && !validWebURL(photo) {
			errs.add(prefix+"photo_url", msgInvalidURL)
		} else {
			artist.PhotoURL = photo
		}
	}
	if req.SocialMediaLinks != nil {
		for network, link := range req.SocialMediaLinks {
			if link != "" && !validWebURL(link) {
				errs.add(prefix+"social_media_links."+network, msgInvalidURL)
			}
		}
		artist.SocialMediaLinks = models.NewSocialLinks(req.SocialMediaLinks)
	}

	return errs.err()
}

// checkArtistOwner requires userID to name an existing artist user without a profile.
func checkArtistOwner(db *gorm.DB, userID, artistID uint, errs *fieldErrors) error {
	if userID == 0 {
		errs.add("user_id", msgBlank)
		return nil
	}

	var user models.User
	err := db.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errs.add("user_id", "must exist")
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsArtist() {
		errs.add("user_id", "must belong to a user with the artist role")
		return nil
	}

	var count int64
	if err := db.Model(&models.Artist{}).Where("user_id = ? AND id <> ?", userID, artistID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		errs.add("user_id", msgTaken)
	}
	return nil
}

// checkManager requires managerID, when set, to name an artist_manager.
func checkManager(db *gorm.DB, managerID *uint, errs *fieldErrors) error {
	if managerID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Where(&models.User{ID: *managerID, Role: models.RoleArtistManager}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		errs.add("manager_id", "must be an artist manager")
	}
	return nil
}

func replaceArtistGenres(tx *gorm.DB, artist *models.Artist, names []string) error {
	genres, err := findOrCreateGenres(tx, names)
	if err != nil {
		return err
	}
	return tx.Model(artist).Association("Genres").Replace(genres)
}

// deleteArtist removes an artist with its join rows. Albums and tracks it created
// stay in the catalog without a creator.
func deleteArtist(tx *gorm.DB, artist *models.Artist) error {
	for _, table := range []string{"artist_genres", "album_artists", "artist_musics"} {
		if err := tx.Exec("DELETE FROM "+table+" WHERE artist_id = ?", artist.ID).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(&models.Album{}).Where("artist_id = ?", artist.ID).Update("artist_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Music{}).Where("artist_id = ?", artist.ID).Update("artist_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Artist{}, artist.ID).Error
}

// fillAlbumCounts sets AlbumsReleased on each artist.
func fillAlbumCounts(db *gorm.DB, artists []models.Artist) error {
	if len(artists) == 0 {
		return nil
	}
	ids := make([]uint, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}

	var rows []struct {
		ArtistID uint
		Count    int64
	}
	if err := db.Table("album_artists").
		Select("artist_id, COUNT(*) AS count").
		Where("artist_id IN ?", ids).
		Group("artist_id").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ArtistID] = r.Count
	}
	for i := range artists {
		artists[i].AlbumsReleased = counts[artists[i].ID]
	}
	return nil
}

func isCSV(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/csv") || mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func orNull(s string) string {
	if s == "" {
		return csvNull
	}
	return s
}

func fromNull(s string) string {
	s = strings.TrimSpace(s)
	if s == csvNull {
		return ""
	}
	return s
}

func errorMessages(err error) []string {
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		return []string{"Internal server error"}
	}
	msgs := make([]string, 0, len(appErr.Errors))
	for _, fe := range appErr.Errors {
		msgs = append(msgs, fe.Field+" "+fe.Message)
	}
	return msgs
}
