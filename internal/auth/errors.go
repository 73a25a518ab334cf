// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when the directory already holds a record for a provider id.
var ErrAlreadyExists = errors.New("already exists")

// Provider-layer failures. Provider adapters wrap these; the machine maps them
// to error codes so raw provider errors never leak past it.
var (
	ErrCancelled         = errors.New("sign-in cancelled")
	ErrInvalidResponse   = errors.New("invalid credential response")
	ErrProviderUnhandled = errors.New("provider request not handled")
	ErrProviderUnknown   = errors.New("unknown provider failure")
)

// Error codes for failures surfaced by the machine.
const (
	CodeCancelled                 = "AUTH_CANCELLED"
	CodeInvalidCredentialResponse = "AUTH_INVALID_CREDENTIAL_RESPONSE"
	CodeProviderUnhandled         = "AUTH_PROVIDER_UNHANDLED"
	CodeProviderUnknown           = "AUTH_PROVIDER_UNKNOWN"
	CodeNetwork                   = "AUTH_NETWORK"
	CodeService                   = "AUTH_SERVICE"
	CodeCredentialRevoked         = "AUTH_CREDENTIAL_REVOKED"
	CodeCredentialNotFound        = "AUTH_CREDENTIAL_NOT_FOUND"
	CodeCredentialTransferred     = "AUTH_CREDENTIAL_TRANSFERRED"
	CodeStatusCheckFailed         = "AUTH_STATUS_CHECK_FAILED"
)

var messages = map[string]string{
	CodeCancelled:                 "Sign-in was cancelled.",
	CodeInvalidCredentialResponse: "The sign-in response was incomplete. Please try again.",
	CodeProviderUnhandled:         "The sign-in request could not be handled. Please try again.",
	CodeProviderUnknown:           "An unknown sign-in error occurred. Please try again.",
	CodeNetwork:                   "No internet connection. Check your connection and try again.",
	CodeService:                   "Something went wrong on our side. Please try again.",
	CodeCredentialRevoked:         "Your sign-in was revoked. Please sign in again.",
	CodeCredentialNotFound:        "Your sign-in could not be found. Please sign in again.",
	CodeCredentialTransferred:     "Your sign-in was transferred to another team. Please sign in again.",
	CodeStatusCheckFailed:         "Could not verify your sign-in status.",
}

// Message returns the user-facing message for an error code.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeService]
}

// StatusCheckFailedMessage returns the message for a failed credential-status
// check, including the failure detail.
func StatusCheckFailedMessage(detail string) string {
	if detail == "" {
		return messages[CodeStatusCheckFailed]
	}
	return fmt.Sprintf("%s (%s)", messages[CodeStatusCheckFailed], detail)
}

// providerErrorCode maps a provider-layer error to its code.
func providerErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrInvalidResponse):
		return CodeInvalidCredentialResponse
	case errors.Is(err, ErrProviderUnhandled):
		return CodeProviderUnhandled
	default:
		return CodeProviderUnknown
	}
}
