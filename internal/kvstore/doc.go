// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package kvstore provides the local key-value stores the auth machine
// persists its cache and identity fields in.
//
// Keys are namespaced with dots ("auth.identity", "contacts.page.1").
// RemovePrefix drops a whole namespace and backs the per-feature cache purgers.
package kvstore
