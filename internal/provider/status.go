// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authstate/internal/auth"
)

const maxStatusBody = 64 << 10

// HTTPStatusChecker asks the provider's credential-state endpoint
// GET {base}/v1/credentials/{id}/state for the status of a credential.
type HTTPStatusChecker struct {
	base   *url.URL
	client *http.Client
}

var _ auth.StatusChecker = (*HTTPStatusChecker)(nil)

// NewHTTPStatusChecker creates a checker for baseURL. A nil client gets a
// default one with the given timeout.
func NewHTTPStatusChecker(baseURL string, timeout time.Duration, client *http.Client) (*HTTPStatusChecker, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("PROVIDER_CONFIG_INVALID").With("status_url", baseURL).Wrap(err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, oops.Code("PROVIDER_CONFIG_INVALID").
			With("status_url", baseURL).
			Errorf("status url must be http or https")
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPStatusChecker{base: base, client: client}, nil
}

type statusResponse struct {
	State string `json:"state"`
}

// CredentialState implements auth.StatusChecker.
func (c *HTTPStatusChecker) CredentialState(ctx context.Context, providerID string) (auth.CredentialStatus, error) {
	endpoint := c.base.JoinPath("v1", "credentials", url.PathEscape(providerID), "state")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", oops.Code("PROVIDER_STATUS_FAILED").With("provider_id", providerID).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if code, ok := auth.TransportCodeOf(err); ok {
			err = &auth.TransportError{Code: code, Err: err}
		}
		return "", oops.Code("PROVIDER_STATUS_UNREACHABLE").With("provider_id", providerID).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return "", oops.Code("PROVIDER_STATUS_UNREACHABLE").
			With("provider_id", providerID).
			Wrap(&auth.TransportError{Code: auth.TransportConnectionLost, Err: err})
	}
	if resp.StatusCode != http.StatusOK {
		return "", oops.Code("PROVIDER_STATUS_FAILED").
			With("provider_id", providerID).
			With("http_status", resp.StatusCode).
			Wrap(statusFailure{status: resp.StatusCode})
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", oops.Code("PROVIDER_STATUS_INVALID").
			With("provider_id", providerID).
			Wrap(errors.Join(auth.ErrInvalidResponse, err))
	}
	switch state := auth.CredentialStatus(parsed.State); state {
	case auth.StatusAuthorized, auth.StatusRevoked, auth.StatusNotFound, auth.StatusTransferred:
		return state, nil
	default:
		return "", oops.Code("PROVIDER_STATUS_INVALID").
			With("provider_id", providerID).
			With("state", parsed.State).
			Wrapf(auth.ErrInvalidResponse, "unknown credential state")
	}
}

// statusFailure is a non-200 reply. Its reason is the HTTP status text.
type statusFailure struct {
	status int
}

func (e statusFailure) Error() string {
	return "credential state request failed: " + http.StatusText(e.status)
}

func (e statusFailure) FailureReason() string {
	return http.StatusText(e.status)
}
