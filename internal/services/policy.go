package services

import (
	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/pkg/response"
)

type Action string

const (
	ActionIndex             Action = "index"
	ActionShow              Action = "show"
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionDestroy           Action = "destroy"
	ActionAll               Action = "all"
	ActionSearch            Action = "search"
	ActionPublicShow        Action = "public_show"
	ActionMyArtists         Action = "my_artists"
	ActionAssignManager     Action = "assign_manager"
	ActionCSVImport         Action = "csv_import"
	ActionCSVExport         Action = "csv_export"
	ActionUnassignedArtists Action = "unassigned_artists"
)

const (
	KindUser      = "user"
	KindArtist    = "artist"
	KindAlbum     = "album"
	KindMusic     = "music"
	KindGenre     = "genre"
	KindSystemLog = "system_log"
)

// Resource carries the ownership facts a rule may need. Zero IDs mean "none".
type Resource struct {
	Kind        string
	OwnerUserID uint // users: the user; artists: the profile's user; albums/musics: the creator's user
	ManagerID   uint // artists: the managing user
}

type rule func(actor *models.User, res Resource) bool

func anyone(_ *models.User, _ Resource) bool { return true }

func roles(allowed ...string) rule {
	return func(actor *models.User, _ Resource) bool {
		for _, r := range allowed {
			if actor.Role == r {
				return true
			}
		}
		return false
	}
}

func anyOf(rules ...rule) rule {
	return func(actor *models.User, res Resource) bool {
		for _, r := range rules {
			if r(actor, res) {
				return true
			}
		}
		return false
	}
}

func owner(actor *models.User, res Resource) bool {
	return res.OwnerUserID != 0 && res.OwnerUserID == actor.ID
}

func managerOf(actor *models.User, res Resource) bool {
	return actor.IsArtistManager() && res.ManagerID != 0 && res.ManagerID == actor.ID
}

func artistWithProfile(actor *models.User, _ Resource) bool {
	return actor.IsArtist() && actor.Artist != nil
}

// An artist may create its own profile once.
func artistCreatingOwnProfile(actor *models.User, res Resource) bool {
	return actor.IsArtist() && actor.Artist == nil && (res.OwnerUserID == 0 || res.OwnerUserID == actor.ID)
}

var (
	superAdmin      = roles(models.RoleSuperAdmin)
	adminOrManager  = roles(models.RoleSuperAdmin, models.RoleArtistManager)
	artistManager   = roles(models.RoleArtistManager)
	adminOrSelf     = anyOf(superAdmin, owner)
	adminOrCreator  = anyOf(superAdmin, func(a *models.User, r Resource) bool { return a.IsArtist() && owner(a, r) })
	artistEditors   = anyOf(superAdmin, managerOf, owner)
	artistCreators  = anyOf(adminOrManager, artistCreatingOwnProfile)
	catalogCreators = rule(artistWithProfile)
)

var policies = map[string]map[Action]rule{
	KindUser: {
		ActionIndex:             superAdmin,
		ActionShow:              adminOrSelf,
		ActionCreate:            superAdmin,
		ActionUpdate:            adminOrSelf,
		ActionDestroy:           adminOrSelf,
		ActionUnassignedArtists: adminOrManager,
	},
	KindArtist: {
		ActionIndex:         adminOrManager,
		ActionAll:           anyone,
		ActionShow:          anyone,
		ActionPublicShow:    anyone,
		ActionCreate:        artistCreators,
		ActionUpdate:        artistEditors,
		ActionDestroy:       artistEditors,
		ActionMyArtists:     artistManager,
		ActionAssignManager: superAdmin,
		ActionCSVImport:     adminOrManager,
		ActionCSVExport:     adminOrManager,
	},
	KindAlbum: {
		ActionIndex:   anyone,
		ActionAll:     anyone,
		ActionShow:    anyone,
		ActionCreate:  catalogCreators,
		ActionUpdate:  adminOrCreator,
		ActionDestroy: adminOrCreator,
	},
	KindMusic: {
		ActionIndex:   anyone,
		ActionAll:     anyone,
		ActionShow:    anyone,
		ActionCreate:  catalogCreators,
		ActionUpdate:  adminOrCreator,
		ActionDestroy: adminOrCreator,
	},
	KindGenre: {
		ActionIndex:   anyone,
		ActionShow:    anyone,
		ActionSearch:  anyone,
		ActionCreate:  anyone,
		ActionUpdate:  superAdmin,
		ActionDestroy: superAdmin,
	},
	KindSystemLog: {
		ActionIndex: superAdmin,
	},
}

// Can reports whether actor may perform action on res. Unknown kinds and
// actions, and a nil actor, are denied.
func Can(actor *models.User, action Action, res Resource) bool {
	if actor == nil {
		return false
	}
	r, ok := policies[res.Kind][action]
	if !ok {
		return false
	}
	return r(actor, res)
}

// Authorize is Can returning the authorization_error used by handlers.
func Authorize(actor *models.User, action Action, res Resource) error {
	if !Can(actor, action, res) {
		return response.NewAuthorizationError()
	}
	return nil
}

// ArtistResource describes an artist profile for policy checks.
func ArtistResource(a *models.Artist) Resource {
	res := Resource{Kind: KindArtist, OwnerUserID: a.UserID}
	if a.ManagerID != nil {
		res.ManagerID = *a.ManagerID
	}
	return res
}

// CreatorResource describes an album or track by its creating artist.
func CreatorResource(kind string, creator *models.Artist) Resource {
	res := Resource{Kind: kind}
	if creator != nil {
		res.OwnerUserID = creator.UserID
	}
	return res
}
