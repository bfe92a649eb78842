package models

import (
	"reflect"
	"testing"
	"time"
)

func TestCollaboratorNames(t *testing.T) {
	alice := Artist{ID: 1, User: &User{FirstName: "Alice", LastName: "Smith"}}
	bob := Artist{ID: 2, User: &User{FirstName: "Bob"}}
	orphan := Artist{ID: 3}

	tests := []struct {
		name     string
		artists  []Artist
		creator  *Artist
		expected []string
	}{
		{"no artists", nil, nil, []string{}},
		{"creator appended", []Artist{bob}, &alice, []string{"Bob", "Alice Smith"}},
		{"creator not duplicated", []Artist{alice, bob}, &alice, []string{"Alice Smith", "Bob"}},
		{"artist without user skipped", []Artist{orphan}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CollaboratorNames(tt.artists, tt.creator)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("CollaboratorNames() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestRefreshToken_Active(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		token    RefreshToken
		expected bool
	}{
		{"fresh", RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, false},
		{"expires now", RefreshToken{ExpiresAt: now}, false},
		{"expired", RefreshToken{ExpiresAt: now.Add(-time.Second)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Active(now); got != tt.expected {
				t.Errorf("Active() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestUser_FullNameAndRoles(t *testing.T) {
	u := User{FirstName: "Ada", LastName: "Lovelace", Role: RoleArtistManager}
	if u.FullName() != "Ada Lovelace" {
		t.Errorf("FullName() = %q", u.FullName())
	}
	if !u.IsArtistManager() || u.IsSuperAdmin() || u.IsArtist() {
		t.Error("role helpers disagree with Role")
	}
	if !ValidRole(RoleArtist) || ValidRole("owner") {
		t.Error("ValidRole() mismatch")
	}
	if !ValidGender(GenderOthers) || ValidGender("unknown") {
		t.Error("ValidGender() mismatch")
	}
}
