// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authstate/internal/auth"
)

// memDirectory is an in-memory user directory.
type memDirectory struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: map[string]*auth.User{}}
}

func (d *memDirectory) Lookup(_ context.Context, providerID string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[providerID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u.Clone(), nil
}

func (d *memDirectory) Create(_ context.Context, user *auth.User) (ulid.ULID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.ProviderID]; ok {
		return ulid.ULID{}, auth.ErrAlreadyExists
	}
	id := ulid.Make()
	stored := user.Clone()
	stored.ID = &id
	d.users[user.ProviderID] = stored
	return id, nil
}

func (d *memDirectory) add(u *auth.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := ulid.Make()
	stored := u.Clone()
	stored.ID = &id
	d.users[u.ProviderID] = stored
}

// statusServer answers the credential-state endpoint.
type statusServer struct {
	*httptest.Server
	mu       sync.Mutex
	states   map[string]auth.CredentialStatus
	failNext atomic.Int32
	calls    atomic.Int32
}

func newStatusServer(t *testing.T) *statusServer {
	t.Helper()
	s := &statusServer{states: map[string]auth.CredentialStatus{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.failNext.Load() > 0 {
			s.failNext.Add(-1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 {
			http.NotFound(w, r)
			return
		}
		s.mu.Lock()
		state, ok := s.states[parts[2]]
		s.mu.Unlock()
		if !ok {
			state = auth.StatusAuthorized
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"state": string(state)})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *statusServer) set(providerID string, state auth.CredentialStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[providerID] = state
}

// cliEnv runs commands against one local store, directory and provider.
type cliEnv struct {
	t         *testing.T
	storePath string
	directory *memDirectory
	provider  *statusServer
	deps      *Deps
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	env := &cliEnv{
		t:         t,
		storePath: filepath.Join(t.TempDir(), "authstate.db"),
		directory: newMemDirectory(),
		provider:  newStatusServer(t),
	}
	env.deps = &Deps{
		OpenDirectory: func(context.Context, string) (auth.Directory, func(), error) {
			return env.directory, func() {}, nil
		},
		LogOutput: &bytes.Buffer{},
	}
	return env
}

// run executes the CLI with the environment's connection flags and returns
// stdout and stderr.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := NewRootCmd(e.deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args,
		"--store-path", e.storePath,
		"--database-url", "postgres://directory.invalid/authstate",
		"--provider-status-url", e.provider.URL,
	))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func idToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-signing-key"))
	require.NoError(t, err)
	return token
}
