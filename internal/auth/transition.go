// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"fmt"
)

// Snapshot is the published view of the machine after a transition.
type Snapshot struct {
	State        State
	ErrorMessage string
	User         *User
	// ProviderID is the identity the current flow is about, also set while
	// waiting for registration.
	ProviderID string
	// Email and DisplayName come from the provider or the persisted fields and
	// pre-populate registration when no cached user exists.
	Email           string
	DisplayName     string
	IsAuthenticated bool
	InSignInFlow    bool
}

// machineState is the actor-owned state: the snapshot plus flow bookkeeping.
// flow increases whenever a flow starts or is superseded; async results carry
// the flow they were started for and are dropped when it no longer matches.
type machineState struct {
	Snapshot
	flow uint64
	busy bool
}

// Reasons an event is ignored.
const (
	ignoreBusy  = "flow_in_progress"
	ignoreStale = "stale_result"
)

type event interface{ eventName() string }

type startRequested struct {
	identity string
	cached   *User
	email    string
	name     string
}

type credentialSubmitted struct {
	reachable  bool
	providerID string
	email      string
	name       string
}

type credentialFailed struct {
	code  string
	class Classification
}

type statusResolved struct {
	flow       uint64
	providerID string
	status     CredentialStatus
	err        error
	class      Classification
}

type lookupRequested struct {
	flow       uint64
	providerID string
}

type lookupResolved struct {
	flow       uint64
	providerID string
	user       *User
	err        error
	class      Classification
}

type registrationCompleted struct {
	user *User
}

type signOutRequested struct {
	clearLocalData bool
}

type errorCleared struct{}

type resetRequested struct {
	flow uint64
}

func (startRequested) eventName() string        { return "start" }
func (credentialSubmitted) eventName() string   { return "credential_submitted" }
func (credentialFailed) eventName() string      { return "credential_failed" }
func (statusResolved) eventName() string        { return "status_resolved" }
func (lookupRequested) eventName() string       { return "lookup_requested" }
func (lookupResolved) eventName() string        { return "lookup_resolved" }
func (registrationCompleted) eventName() string { return "registration_completed" }
func (signOutRequested) eventName() string      { return "sign_out" }
func (errorCleared) eventName() string          { return "error_cleared" }
func (resetRequested) eventName() string        { return "reset" }

type effect interface{ effectName() string }

type checkStatusEffect struct {
	flow       uint64
	providerID string
}

type lookupEffect struct {
	flow       uint64
	providerID string
}

type saveUserEffect struct {
	user *User
}

type rememberIdentityEffect struct {
	providerID string
	email      string
	name       string
}

type setAuthenticatedEffect struct {
	authenticated bool
}

type clearLocalEffect struct {
	purgeFeatureCaches bool
}

type presentEffect struct {
	incident Incident
	retry    *RetryAction
}

func (checkStatusEffect) effectName() string      { return "check_status" }
func (lookupEffect) effectName() string           { return "lookup" }
func (saveUserEffect) effectName() string         { return "save_user" }
func (rememberIdentityEffect) effectName() string { return "remember_identity" }
func (setAuthenticatedEffect) effectName() string { return "set_authenticated" }
func (clearLocalEffect) effectName() string       { return "clear_local" }
func (presentEffect) effectName() string          { return "present" }

// transition computes the next state and the effects to run for ev. It has no
// side effects. A non-empty reason means the event was ignored and s is
// returned unchanged.
func transition(s machineState, ev event) (machineState, []effect, string) {
	switch e := ev.(type) {
	case startRequested:
		return onStart(s, e)
	case credentialSubmitted:
		return onCredential(s, e)
	case credentialFailed:
		return onCredentialFailed(s, e)
	case statusResolved:
		return onStatus(s, e)
	case lookupRequested:
		if s.busy {
			return s, nil, ignoreBusy
		}
		// Only the failed lookup of the current flow can be re-run.
		if e.flow != s.flow || s.State.Kind != KindError || s.ProviderID != e.providerID {
			return s, nil, ignoreStale
		}
		s.flow++
		s.busy = true
		s.ProviderID = e.providerID
		s.ErrorMessage = ""
		s.State = Loading()
		return s, []effect{lookupEffect{flow: s.flow, providerID: e.providerID}}, ""
	case lookupResolved:
		return onLookup(s, e)
	case registrationCompleted:
		s.flow++
		s.busy = false
		s.User = e.user
		s.ProviderID = e.user.ProviderID
		s.IsAuthenticated = true
		s.InSignInFlow = false
		s.ErrorMessage = ""
		s.State = Authenticated()
		return s, []effect{
			rememberIdentityEffect{providerID: e.user.ProviderID, name: e.user.Name},
			saveUserEffect{user: e.user},
			setAuthenticatedEffect{authenticated: true},
		}, ""
	case signOutRequested:
		s = signedOut(s)
		s.flow++
		return s, []effect{clearLocalEffect{purgeFeatureCaches: e.clearLocalData}}, ""
	case errorCleared:
		if s.State.Kind == KindError && !s.IsAuthenticated {
			s.State = Idle()
		}
		s.ErrorMessage = ""
		return s, nil, ""
	case resetRequested:
		if e.flow != s.flow {
			return s, nil, ignoreStale
		}
		s.flow++
		s.busy = false
		s.InSignInFlow = false
		s.ErrorMessage = ""
		if !s.IsAuthenticated {
			s.State = Idle()
		}
		return s, nil, ""
	default:
		panic(fmt.Sprintf("auth: unhandled event %T", ev))
	}
}

func onStart(s machineState, e startRequested) (machineState, []effect, string) {
	if s.busy {
		return s, nil, ignoreBusy
	}
	s.flow++
	s.ErrorMessage = ""
	s.InSignInFlow = false
	s.Email = e.email
	s.DisplayName = e.name

	if e.identity == "" {
		s = signedOut(s)
		return s, nil, ""
	}

	s.ProviderID = e.identity
	if e.cached != nil && e.cached.ProviderID == e.identity {
		s.User = e.cached
		s.IsAuthenticated = true
		s.State = Authenticated()
		if s.DisplayName == "" {
			s.DisplayName = e.cached.Name
		}
		return s, []effect{setAuthenticatedEffect{authenticated: true}}, ""
	}

	s.busy = true
	s.User = nil
	s.IsAuthenticated = false
	s.State = Loading()
	return s, []effect{checkStatusEffect{flow: s.flow, providerID: e.identity}}, ""
}

func onCredential(s machineState, e credentialSubmitted) (machineState, []effect, string) {
	if s.busy {
		return s, nil, ignoreBusy
	}

	if !e.reachable {
		msg := Message(CodeNetwork)
		reset := ResetAction()
		s.InSignInFlow = false
		s.ErrorMessage = msg
		if !s.IsAuthenticated {
			s.State = Idle()
		}
		return s, []effect{presentEffect{
			incident: Incident{Classification: ClassNetwork, Message: msg, FailedStep: reset, InSignInFlow: true, Flow: s.flow},
			retry:    &reset,
		}}, ""
	}

	if e.providerID == "" {
		msg := Message(CodeInvalidCredentialResponse)
		s.InSignInFlow = true
		s.ErrorMessage = msg
		if !s.IsAuthenticated {
			s.State = Failed(msg)
		}
		return s, []effect{presentEffect{
			incident: Incident{Classification: ClassService, Message: msg, FailedStep: ResetAction(), InSignInFlow: true, Flow: s.flow},
		}}, ""
	}

	s.flow++
	s.busy = true
	s.InSignInFlow = true
	s.ErrorMessage = ""
	s.ProviderID = e.providerID
	s.Email = e.email
	s.DisplayName = e.name
	s.User = nil
	s.IsAuthenticated = false
	s.State = Loading()
	return s, []effect{
		rememberIdentityEffect{providerID: e.providerID, email: e.email, name: e.name},
		lookupEffect{flow: s.flow, providerID: e.providerID},
	}, ""
}

func onCredentialFailed(s machineState, e credentialFailed) (machineState, []effect, string) {
	if s.busy {
		return s, nil, ignoreBusy
	}
	s.InSignInFlow = false
	if e.code == CodeCancelled {
		if s.State.Kind == KindError && !s.IsAuthenticated {
			s.State = Idle()
			s.ErrorMessage = ""
		}
		return s, nil, ""
	}

	msg := Message(e.code)
	if e.class == ClassNetwork {
		msg = Message(CodeNetwork)
	}
	s.ErrorMessage = msg
	if !s.IsAuthenticated {
		s.State = Failed(msg)
	}
	return s, []effect{presentEffect{
		incident: Incident{Classification: e.class, Message: msg, FailedStep: ResetAction(), InSignInFlow: true, Flow: s.flow},
	}}, ""
}

func onStatus(s machineState, e statusResolved) (machineState, []effect, string) {
	if !s.busy || e.flow != s.flow {
		return s, nil, ignoreStale
	}

	if e.err != nil {
		msg := StatusCheckFailedMessage(e.err.Error())
		if e.class == ClassNetwork {
			msg = Message(CodeNetwork)
		}
		return statusFailed(s, e.class, msg)
	}

	var code string
	switch e.status {
	case StatusAuthorized:
		return s, []effect{lookupEffect{flow: s.flow, providerID: e.providerID}}, ""
	case StatusRevoked:
		code = CodeCredentialRevoked
	case StatusNotFound:
		code = CodeCredentialNotFound
	case StatusTransferred:
		code = CodeCredentialTransferred
	default:
		return statusFailed(s, ClassService, StatusCheckFailedMessage(fmt.Sprintf("unexpected credential state %q", e.status)))
	}

	s = signedOut(s)
	s.ErrorMessage = Message(code)
	return s, []effect{clearLocalEffect{}}, ""
}

func statusFailed(s machineState, class Classification, msg string) (machineState, []effect, string) {
	retry := StartAction()
	s.busy = false
	s.ErrorMessage = msg
	s.State = Failed(msg)
	return s, []effect{presentEffect{
		incident: Incident{Classification: class, Message: msg, FailedStep: retry, Flow: s.flow},
		retry:    &retry,
	}}, ""
}

func onLookup(s machineState, e lookupResolved) (machineState, []effect, string) {
	if !s.busy || e.flow != s.flow {
		return s, nil, ignoreStale
	}
	s.busy = false

	switch {
	case e.err == nil && e.user != nil:
		s.User = e.user
		s.ProviderID = e.user.ProviderID
		s.IsAuthenticated = true
		s.InSignInFlow = false
		s.ErrorMessage = ""
		if s.DisplayName == "" {
			s.DisplayName = e.user.Name
		}
		s.State = Authenticated()
		return s, []effect{
			saveUserEffect{user: e.user},
			setAuthenticatedEffect{authenticated: true},
		}, ""
	case e.err == nil:
		s.User = nil
		s.IsAuthenticated = false
		s.InSignInFlow = false
		s.ErrorMessage = ""
		s.State = NeedsRegistration()
		return s, []effect{setAuthenticatedEffect{authenticated: false}}, ""
	default:
		msg := Message(CodeService)
		if e.class == ClassNetwork {
			msg = Message(CodeNetwork)
		}
		s.ErrorMessage = msg
		s.State = Failed(msg)
		return s, []effect{presentEffect{
			incident: Incident{
				Classification: e.class,
				Message:        msg,
				FailedStep:     LookupAction(e.providerID),
				InSignInFlow:   s.InSignInFlow,
				Flow:           s.flow,
			},
		}}, ""
	}
}

// signedOut resets the snapshot to the unauthenticated rest state. Flow
// bookkeeping is kept so in-flight results stay recognisable as stale.
func signedOut(s machineState) machineState {
	return machineState{
		Snapshot: Snapshot{State: Unauthenticated()},
		flow:     s.flow,
	}
}
