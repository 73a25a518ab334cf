// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth reconciles a provider sign-in, the remote user directory, the
// local cache and network reachability into one authentication state.
//
// # State
//
// Machine owns the current State and publishes an immutable Snapshot after
// every transition. Snapshots are read with Machine.Snapshot, streamed with
// Machine.Subscribe or waited for with Machine.Await.
//
// Transitions are computed by a pure reducer; the machine's event loop runs
// the resulting effects (cache writes, identity writes, status checks,
// directory lookups, notifications). Provider and directory calls run on
// worker goroutines and their results are applied only while the flow that
// started them is still current.
//
// # Failures
//
// Classifier sorts failures into network and service failures.
// RetryCoordinator turns them into a Notification with a RetryAction, which is
// plain data executed by Machine.Retry. The machine never retries on its own.
//
// # Persistence
//
// UserCache keeps a single cached User; IdentityStore keeps the auxiliary
// sign-in fields. Both sit on a KeyValueStore.
package auth
