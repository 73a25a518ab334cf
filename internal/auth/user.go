// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is the application identity and profile record held by the directory.
//
// ProviderID is the stable external identity and never changes. ID is assigned
// by the directory when the record is created and is immutable afterwards.
type User struct {
	ID          *ulid.ULID `json:"id,omitempty"`
	ProviderID  string     `json:"providerId"`
	Name        string     `json:"name"`
	Nationality *string    `json:"nationality,omitempty"`
	Areas       []string   `json:"areas"`
	Interests   []string   `json:"interests"`
	PhotoURL    *string    `json:"photoUrl,omitempty"`
}

// NewUser creates a User that has not been saved to the directory yet.
func NewUser(providerID, name string) (*User, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("provider id cannot be empty")
	}
	return &User{
		ProviderID: providerID,
		Name:       strings.TrimSpace(name),
	}, nil
}

// HasID reports whether the directory has assigned an id.
func (u *User) HasID() bool {
	return u.ID != nil
}

// AssignID records the directory-assigned id. It fails if an id is already set.
func (u *User) AssignID(id ulid.ULID) error {
	if u.ID != nil {
		return oops.Code("AUTH_USER_ID_ALREADY_SET").
			With("user_id", u.ID.String()).
			With("provider_id", u.ProviderID).
			Errorf("user id is already assigned")
	}
	u.ID = &id
	return nil
}

// Clone returns a deep copy so snapshots never share mutable state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ID != nil {
		id := *u.ID
		c.ID = &id
	}
	if u.Nationality != nil {
		n := *u.Nationality
		c.Nationality = &n
	}
	if u.PhotoURL != nil {
		p := *u.PhotoURL
		c.PhotoURL = &p
	}
	c.Areas = slices.Clone(u.Areas)
	c.Interests = slices.Clone(u.Interests)
	return &c
}
