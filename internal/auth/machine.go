// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/holomush/authstate/internal/logging"
	"github.com/holomush/authstate/pkg/errutil"
)

var tracer = otel.Tracer("authstate/auth")

// ErrMachineClosed is returned by operations on a closed Machine.
var ErrMachineClosed = errors.New("state machine closed")

// subscriberBuffer is the per-subscriber snapshot buffer. Slow subscribers
// miss intermediate snapshots but can always read the latest with Snapshot.
const subscriberBuffer = 16

// Deps are the collaborators a Machine needs. Notifier and Purgers are optional.
type Deps struct {
	Store        KeyValueStore
	Directory    Directory
	Status       StatusChecker
	Reachability Reachability
	Notifier     Notifier
	Purgers      []Purger
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLocale selects the keyword table used to recognise network failures.
func WithLocale(locale language.Tag) Option {
	return func(m *Machine) {
		m.locale = locale
	}
}

// Machine owns the authentication state. All mutations run on one event-loop
// goroutine; provider and directory calls run on worker goroutines and post
// their results back to it.
type Machine struct {
	cache       *UserCache
	identities  *IdentityStore
	directory   Directory
	status      StatusChecker
	reach       Reachability
	classifier  *Classifier
	coordinator *RetryCoordinator
	notifier    Notifier
	purgers     []Purger
	logger      *slog.Logger
	locale      language.Tag

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	current atomic.Pointer[Snapshot]
	subsMu  sync.Mutex
	subs    []chan Snapshot

	// owned by the event loop
	state machineState
}

// NewMachine creates a Machine in the idle state and starts its event loop.
// Call Close to stop it.
func NewMachine(deps Deps, opts ...Option) (*Machine, error) {
	switch {
	case deps.Store == nil:
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("key-value store is required")
	case deps.Directory == nil:
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("directory is required")
	case deps.Status == nil:
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("status checker is required")
	case deps.Reachability == nil:
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("reachability is required")
	}

	m := &Machine{
		directory: deps.Directory,
		status:    deps.Status,
		reach:     deps.Reachability,
		notifier:  deps.Notifier,
		purgers:   deps.Purgers,
		logger:    slog.Default(),
		locale:    language.English,
		cmds:      make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     machineState{Snapshot: Snapshot{State: Idle()}},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "auth")
	m.cache = NewUserCache(deps.Store, m.logger)
	m.identities = NewIdentityStore(deps.Store, m.logger)
	m.classifier = NewClassifier(deps.Reachability, m.locale)
	m.coordinator = NewRetryCoordinator(deps.Notifier, m.logger)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	initial := m.state.Snapshot
	m.current.Store(&initial)

	go m.run()
	return m, nil
}

// Snapshot returns the latest published snapshot.
func (m *Machine) Snapshot() Snapshot {
	return *m.current.Load()
}

// State returns the current authentication state.
func (m *Machine) State() State {
	return m.Snapshot().State
}

// Classifier returns the classifier the machine uses, so collaborators such as
// registration classify failures the same way.
func (m *Machine) Classifier() *Classifier {
	return m.classifier
}

// Subscribe returns a channel receiving every published snapshot and a
// function that cancels the subscription. The channel is closed by cancel or Close.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subsMu.Lock()
	select {
	case <-m.quit:
		m.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			for i, sub := range m.subs {
				if sub == ch {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

// Await blocks until pred holds for the latest snapshot, ctx ends or the machine closes.
func (m *Machine) Await(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	ch, cancel := m.Subscribe()
	defer cancel()

	for {
		snap := m.Snapshot()
		if pred(snap) {
			return snap, nil
		}
		select {
		case _, ok := <-ch:
			if !ok {
				return m.Snapshot(), ErrMachineClosed
			}
		case <-ctx.Done():
			return snap, oops.Code("AUTH_AWAIT_CANCELLED").
				With("state", snap.State.String()).
				Wrap(ctx.Err())
		}
	}
}

// Settled is an Await predicate matching any state other than loading.
func Settled(s Snapshot) bool {
	return s.State.IsSettled()
}

// Start runs the cold-start check: cache first, then the provider status
// check and directory lookup. It returns once the check is under way; watch
// the snapshot for the outcome. A call while a flow is in flight is ignored.
func (m *Machine) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "auth.start")
	defer span.End()

	return m.submit(ctx, func(ctx context.Context) error {
		m.start(ctx)
		return nil
	})
}

// start runs on the loop.
func (m *Machine) start(ctx context.Context) {
	if m.state.busy {
		m.ignore(ctx, "start", ignoreBusy)
		return
	}
	identity, _ := m.identities.Identity(ctx)
	var cached *User
	if identity != "" {
		cached = m.cache.Load(ctx)
		if cached != nil && cached.ProviderID != identity {
			recordCacheEvent(CacheMismatch)
			m.logger.InfoContext(ctx, "cached user belongs to another identity, ignoring cache")
			cached = nil
		}
	}
	m.dispatch(ctx, startRequested{
		identity: identity,
		cached:   cached,
		email:    m.identities.SavedEmail(ctx),
		name:     m.identities.SavedName(ctx),
	})
}

// HandleCredential processes a freshly completed provider sign-in.
func (m *Machine) HandleCredential(ctx context.Context, cred Credential) error {
	ctx, span := tracer.Start(ctx, "auth.handle_credential")
	defer span.End()

	return m.submit(ctx, func(ctx context.Context) error {
		if m.state.busy {
			m.ignore(ctx, "handle_credential", ignoreBusy)
			return nil
		}
		email := strings.TrimSpace(cred.Email)
		if email == "" {
			email = m.identities.SavedEmail(ctx)
		}
		name := cred.DisplayName()
		if name == "" {
			name = m.identities.SavedName(ctx)
		}
		m.dispatch(ctx, credentialSubmitted{
			reachable:  m.reach.IsReachable(),
			providerID: strings.TrimSpace(cred.ProviderID),
			email:      email,
			name:       name,
		})
		return nil
	})
}

// HandleCredentialError processes a failure reported by the provider's
// sign-in UI. Cancellation silently returns to the pre-flow state.
func (m *Machine) HandleCredentialError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	code := providerErrorCode(err)
	class := ClassService
	if code != CodeCancelled {
		class = m.classifier.Classify(err)
		errutil.LogWarn(ctx, m.logger, "provider sign-in failed", oops.Code(code).Wrap(err))
	}
	return m.submit(ctx, func(ctx context.Context) error {
		m.dispatch(ctx, credentialFailed{code: code, class: class})
		return nil
	})
}

// CompleteRegistration marks a user created upstream in the directory as
// signed in. The machine must be waiting for registration of the same identity.
func (m *Machine) CompleteRegistration(ctx context.Context, user *User) error {
	if user == nil || user.ProviderID == "" {
		return oops.Code("AUTH_REGISTRATION_INVALID").Errorf("user with provider id is required")
	}
	if !user.HasID() {
		return oops.Code("AUTH_REGISTRATION_INVALID").
			With("provider_id", user.ProviderID).
			Errorf("user has not been created in the directory")
	}
	registered := user.Clone()
	return m.submit(ctx, func(ctx context.Context) error {
		if m.state.State.Kind != KindNeedsRegistration || m.state.ProviderID != registered.ProviderID {
			return oops.Code("AUTH_REGISTRATION_UNEXPECTED").
				With("state", m.state.State.String()).
				With("provider_id", registered.ProviderID).
				Errorf("no registration pending for this identity")
		}
		m.dispatch(ctx, registrationCompleted{user: registered})
		return nil
	})
}

// SignOut clears the persisted identity and cached user. With clearLocalData
// the per-feature caches are purged too. Results of in-flight calls are dropped.
func (m *Machine) SignOut(ctx context.Context, clearLocalData bool) error {
	return m.submit(ctx, func(ctx context.Context) error {
		m.dispatch(ctx, signOutRequested{clearLocalData: clearLocalData})
		return nil
	})
}

// ClearError clears the error message. An error state returns to idle unless
// the user is authenticated.
func (m *Machine) ClearError(ctx context.Context) error {
	return m.submit(ctx, func(ctx context.Context) error {
		m.dispatch(ctx, errorCleared{})
		return nil
	})
}

// Retry executes a retry action produced by the retry coordinator. Actions
// issued for an earlier flow are ignored as stale.
func (m *Machine) Retry(ctx context.Context, action RetryAction) error {
	switch action.Op {
	case RetryResetToIdle:
		return m.submit(ctx, func(ctx context.Context) error {
			m.dispatch(ctx, resetRequested{flow: action.Flow})
			return nil
		})
	case RetryStart:
		return m.submit(ctx, func(ctx context.Context) error {
			if action.Flow != m.state.flow {
				m.ignore(ctx, "retry_start", ignoreStale)
				return nil
			}
			m.start(ctx)
			return nil
		})
	case RetryLookup:
		if action.ProviderID == "" {
			return oops.Code("AUTH_RETRY_INVALID").Errorf("lookup retry requires a provider id")
		}
		return m.submit(ctx, func(ctx context.Context) error {
			m.dispatch(ctx, lookupRequested{flow: action.Flow, providerID: action.ProviderID})
			return nil
		})
	default:
		return oops.Code("AUTH_RETRY_INVALID").With("op", action.Op).Errorf("unknown retry operation")
	}
}

// Close stops the event loop, cancels in-flight calls and waits for workers.
// Results arriving afterwards are discarded. Close is idempotent.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() {
		m.subsMu.Lock()
		close(m.quit)
		m.subsMu.Unlock()

		<-m.done
		m.cancel()
		m.workers.Wait()

		m.subsMu.Lock()
		for _, ch := range m.subs {
			close(ch)
		}
		m.subs = nil
		m.subsMu.Unlock()
	})
	return nil
}

func (m *Machine) run() {
	defer close(m.done)
	for {
		select {
		case fn := <-m.cmds:
			fn()
		case <-m.quit:
			return
		}
	}
}

// submit runs fn on the event loop and waits for it to finish.
func (m *Machine) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	loopCtx := m.detach(ctx)
	result := make(chan error, 1)
	select {
	case m.cmds <- func() { result <- fn(loopCtx) }:
	case <-m.quit:
		return ErrMachineClosed
	case <-ctx.Done():
		return oops.Code("AUTH_SUBMIT_CANCELLED").Wrap(ctx.Err())
	}
	return <-result
}

// post delivers a worker result to the event loop, or drops it once closed.
func (m *Machine) post(ctx context.Context, ev event) {
	select {
	case m.cmds <- func() { m.dispatch(ctx, ev) }:
	case <-m.quit:
		recordIgnored("closed")
		m.logger.DebugContext(ctx, "dropping result after close", "event", ev.eventName())
	}
}

// detach keeps the trace and flow of ctx but ties cancellation to the machine,
// so work started by a request outlives the request.
func (m *Machine) detach(ctx context.Context) context.Context {
	out := trace.ContextWithSpanContext(m.ctx, trace.SpanContextFromContext(ctx))
	if flow, ok := logging.FlowID(ctx); ok {
		out = logging.WithFlowID(out, flow)
	}
	return out
}

func (m *Machine) ignore(ctx context.Context, what, reason string) {
	recordIgnored(reason)
	m.logger.DebugContext(ctx, "ignoring auth event", "event", what, "reason", reason)
}

func (m *Machine) dispatch(ctx context.Context, ev event) {
	prev := m.state
	next, effects, reason := transition(prev, ev)
	if reason != "" {
		m.ignore(ctx, ev.eventName(), reason)
		return
	}
	m.state = next

	ctx = logging.WithFlowID(ctx, next.flow)
	for _, eff := range effects {
		m.execute(ctx, eff)
	}

	if !prev.State.Equal(next.State) {
		recordTransition(prev.State.Kind, next.State.Kind)
		m.logger.InfoContext(ctx, "auth state changed",
			"event", ev.eventName(),
			"from", prev.State.String(),
			"to", next.State.String(),
		)
	}
	m.publish()
}

func (m *Machine) execute(ctx context.Context, eff effect) {
	switch e := eff.(type) {
	case checkStatusEffect:
		m.checkStatus(ctx, e)
	case lookupEffect:
		m.lookup(ctx, e)
	case saveUserEffect:
		m.cache.Save(ctx, e.user)
	case rememberIdentityEffect:
		if err := m.identities.Remember(ctx, e.providerID, e.email, e.name); err != nil {
			errutil.LogError(ctx, m.logger, "identity not persisted", err)
		}
	case setAuthenticatedEffect:
		if err := m.identities.SetAuthenticated(ctx, e.authenticated); err != nil {
			errutil.LogError(ctx, m.logger, "authenticated flag not persisted", err)
		}
	case clearLocalEffect:
		m.clearLocal(ctx, e.purgeFeatureCaches)
	case presentEffect:
		m.coordinator.Present(ctx, e.incident, e.retry)
	default:
		m.logger.ErrorContext(ctx, "unhandled auth effect", "effect", eff.effectName())
	}
}

func (m *Machine) clearLocal(ctx context.Context, purge bool) {
	if err := m.identities.Clear(ctx); err != nil {
		errutil.LogError(ctx, m.logger, "identity not cleared", err)
	}
	m.cache.Clear(ctx)
	if !purge {
		return
	}
	for _, p := range m.purgers {
		if err := p.Purge(ctx); err != nil {
			errutil.LogWarn(ctx, m.logger, "feature cache not purged", oops.Code("AUTH_PURGE_FAILED").Wrap(err))
		}
	}
}

func (m *Machine) checkStatus(ctx context.Context, e checkStatusEffect) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		ctx, span := tracer.Start(ctx, "auth.status_check",
			trace.WithAttributes(attribute.String("auth.provider_id", e.providerID)),
		)
		credStatus, err := m.status.CredentialState(ctx, e.providerID)
		ev := statusResolved{flow: e.flow, providerID: e.providerID, status: credStatus, err: err}
		if err != nil {
			ev.class = m.classifier.Classify(err)
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			errutil.LogWarn(ctx, m.logger, "credential status check failed", oops.Code(CodeStatusCheckFailed).
				With("classification", ev.class).
				Wrap(err))
		} else {
			span.SetAttributes(attribute.String("auth.credential_status", string(credStatus)))
		}
		span.End()
		m.post(ctx, ev)
	}()
}

func (m *Machine) lookup(ctx context.Context, e lookupEffect) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		ctx, span := tracer.Start(ctx, "auth.directory_lookup",
			trace.WithAttributes(attribute.String("auth.provider_id", e.providerID)),
		)
		user, err := m.directory.Lookup(ctx, e.providerID)
		ev := lookupResolved{flow: e.flow, providerID: e.providerID, user: user, err: err}
		switch {
		case errors.Is(err, ErrNotFound):
			ev.user, ev.err = nil, nil
			span.SetAttributes(attribute.Bool("auth.directory_hit", false))
		case err != nil:
			ev.class = m.classifier.Classify(err)
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			errutil.LogWarn(ctx, m.logger, "directory lookup failed", oops.Code("AUTH_DIRECTORY_LOOKUP_FAILED").
				With("classification", ev.class).
				Wrap(err))
		default:
			span.SetAttributes(attribute.Bool("auth.directory_hit", user != nil))
		}
		span.End()
		m.post(ctx, ev)
	}()
}

func (m *Machine) publish() {
	snap := m.state.Snapshot
	snap.User = snap.User.Clone()
	m.current.Store(&snap)

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			m.logger.Warn("auth snapshot dropped: subscriber buffer full", "state", snap.State.String())
		}
	}
}
