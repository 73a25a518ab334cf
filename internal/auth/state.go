// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// StateKind identifies the active authentication state variant.
type StateKind string

// Authentication state kinds.
const (
	KindIdle              StateKind = "idle"
	KindLoading           StateKind = "loading"
	KindAuthenticated     StateKind = "authenticated"
	KindUnauthenticated   StateKind = "unauthenticated"
	KindNeedsRegistration StateKind = "needs_registration"
	KindError             StateKind = "error"
)

// State is the authoritative authentication state. Exactly one kind is active
// at a time; Message is only meaningful for KindError.
type State struct {
	Kind    StateKind
	Message string
}

// Idle returns the initial state.
func Idle() State { return State{Kind: KindIdle} }

// Loading returns the state shown while a provider or directory call is in flight.
func Loading() State { return State{Kind: KindLoading} }

// Authenticated returns the signed-in rest state.
func Authenticated() State { return State{Kind: KindAuthenticated} }

// Unauthenticated returns the signed-out rest state.
func Unauthenticated() State { return State{Kind: KindUnauthenticated} }

// NeedsRegistration returns the state for an authorized identity with no directory record.
func NeedsRegistration() State { return State{Kind: KindNeedsRegistration} }

// Failed returns an error state carrying a user-facing message.
func Failed(message string) State { return State{Kind: KindError, Message: message} }

// Equal reports whether two states are the same variant. Error states also
// compare their messages.
func (s State) Equal(other State) bool {
	if s.Kind != other.Kind {
		return false
	}
	if s.Kind == KindError {
		return s.Message == other.Message
	}
	return true
}

// IsRest reports whether the state is one of the stable rest states.
func (s State) IsRest() bool {
	return s.Kind == KindAuthenticated || s.Kind == KindUnauthenticated
}

// IsSettled reports whether no flow is running: everything except loading.
func (s State) IsSettled() bool {
	return s.Kind != KindLoading
}

func (s State) String() string {
	if s.Kind == KindError {
		return string(s.Kind) + ": " + s.Message
	}
	return string(s.Kind)
}
