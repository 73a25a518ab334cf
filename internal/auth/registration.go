// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/samber/oops"
)

// Profile is the data collected by the registration form.
type Profile struct {
	Name        string
	Nationality *string
	Areas       []string
	Interests   []string
	PhotoURL    *string
}

// RegistrationService creates the directory record for a signed-in identity
// that has no user yet, then completes registration on the machine.
type RegistrationService struct {
	machine    *Machine
	directory  Directory
	classifier *Classifier
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(machine *Machine, directory Directory) (*RegistrationService, error) {
	if machine == nil {
		return nil, oops.Code("AUTH_REGISTRATION_INVALID").Errorf("machine is required")
	}
	if directory == nil {
		return nil, oops.Code("AUTH_REGISTRATION_INVALID").Errorf("directory is required")
	}
	return &RegistrationService{
		machine:    machine,
		directory:  directory,
		classifier: machine.Classifier(),
	}, nil
}

// Register creates the user for the pending identity and marks it signed in.
// When the profile has no name the display name the provider supplied is used.
func (s *RegistrationService) Register(ctx context.Context, profile Profile) (*User, error) {
	snap := s.machine.Snapshot()
	if snap.State.Kind != KindNeedsRegistration {
		return nil, oops.Code("AUTH_REGISTRATION_UNEXPECTED").
			With("state", snap.State.String()).
			Errorf("no registration pending")
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = snap.DisplayName
	}
	user, err := NewUser(snap.ProviderID, name)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTRATION_INVALID").Wrap(err)
	}
	user.Nationality = profile.Nationality
	user.Areas = slices.Clone(profile.Areas)
	user.Interests = slices.Clone(profile.Interests)
	user.PhotoURL = profile.PhotoURL

	id, err := s.directory.Create(ctx, user)
	if err != nil {
		code := "AUTH_REGISTRATION_FAILED"
		if errors.Is(err, ErrAlreadyExists) {
			code = "AUTH_REGISTRATION_DUPLICATE"
		}
		return nil, oops.Code(code).
			With("provider_id", user.ProviderID).
			With("classification", s.classifier.Classify(err)).
			Wrap(err)
	}
	if err := user.AssignID(id); err != nil {
		return nil, oops.Code("AUTH_REGISTRATION_FAILED").Wrap(err)
	}

	if err := s.machine.CompleteRegistration(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
