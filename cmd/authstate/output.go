// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/authstate/internal/auth"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	if format != outputText && format != outputYAML {
		return oops.Code("CLI_OUTPUT_INVALID").
			With("output", format).
			Errorf("output must be 'text' or 'yaml', got %q", format)
	}
	return nil
}

type userView struct {
	ID          string   `yaml:"id,omitempty"`
	ProviderID  string   `yaml:"provider_id"`
	Name        string   `yaml:"name"`
	Nationality string   `yaml:"nationality,omitempty"`
	Areas       []string `yaml:"areas,omitempty"`
	Interests   []string `yaml:"interests,omitempty"`
	PhotoURL    string   `yaml:"photo_url,omitempty"`
}

func newUserView(u *auth.User) *userView {
	if u == nil {
		return nil
	}
	v := &userView{
		ProviderID: u.ProviderID,
		Name:       u.Name,
		Areas:      u.Areas,
		Interests:  u.Interests,
	}
	if u.ID != nil {
		v.ID = u.ID.String()
	}
	if u.Nationality != nil {
		v.Nationality = *u.Nationality
	}
	if u.PhotoURL != nil {
		v.PhotoURL = *u.PhotoURL
	}
	return v
}

type snapshotView struct {
	State         string    `yaml:"state"`
	Error         string    `yaml:"error,omitempty"`
	ProviderID    string    `yaml:"provider_id,omitempty"`
	Email         string    `yaml:"email,omitempty"`
	DisplayName   string    `yaml:"display_name,omitempty"`
	Authenticated bool      `yaml:"authenticated"`
	User          *userView `yaml:"user,omitempty"`
}

func newSnapshotView(s auth.Snapshot) snapshotView {
	return snapshotView{
		State:         string(s.State.Kind),
		Error:         s.ErrorMessage,
		ProviderID:    s.ProviderID,
		Email:         s.Email,
		DisplayName:   s.DisplayName,
		Authenticated: s.IsAuthenticated,
		User:          newUserView(s.User),
	}
}

func writeSnapshot(w io.Writer, format string, s auth.Snapshot) error {
	v := newSnapshotView(s)
	if format == outputYAML {
		return writeYAML(w, v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "state:         %s\n", stateColor(s.State.Kind).Sprint(v.State))
	if v.Error != "" {
		fmt.Fprintf(&b, "error:         %s\n", color.RedString(v.Error))
	}
	writeField(&b, "provider id", v.ProviderID)
	writeField(&b, "email", v.Email)
	writeField(&b, "display name", v.DisplayName)
	fmt.Fprintf(&b, "authenticated: %t\n", v.Authenticated)
	writeUser(&b, v.User)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%-15s%s\n", label+":", value)
}

func writeUser(b *strings.Builder, u *userView) {
	if u == nil {
		return
	}
	b.WriteString("user:\n")
	writeField(b, "  id", u.ID)
	writeField(b, "  name", u.Name)
	writeField(b, "  nationality", u.Nationality)
	writeField(b, "  areas", strings.Join(u.Areas, ", "))
	writeField(b, "  interests", strings.Join(u.Interests, ", "))
	writeField(b, "  photo url", u.PhotoURL)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
	}
	return enc.Close()
}

func stateColor(kind auth.StateKind) *color.Color {
	switch kind {
	case auth.KindAuthenticated:
		return color.New(color.FgGreen, color.Bold)
	case auth.KindNeedsRegistration, auth.KindLoading:
		return color.New(color.FgYellow)
	case auth.KindError:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Reset)
	}
}
