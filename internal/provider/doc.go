// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package provider adapts the identity provider to the auth package: it turns
// ID tokens into credentials and asks the provider for credential status.
//
// Adapter failures wrap the auth provider sentinels so the machine can map
// them to user-facing codes.
package provider
