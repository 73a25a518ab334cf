// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package provider

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/holomush/authstate/internal/auth"
)

// idTokenClaims are the OpenID Connect claims read from a provider ID token.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	MiddleName string `json:"middle_name"`
	FamilyName string `json:"family_name"`
	Nickname   string `json:"nickname"`
}

// TokenParser turns provider ID tokens into credentials.
type TokenParser struct {
	secret []byte
}

// TokenOption configures a TokenParser.
type TokenOption func(*TokenParser)

// WithHMACSecret makes the parser verify HS256 signatures with secret.
// Without it the signature is assumed to be checked by the provider SDK.
func WithHMACSecret(secret []byte) TokenOption {
	return func(p *TokenParser) {
		p.secret = secret
	}
}

// NewTokenParser creates a TokenParser.
func NewTokenParser(opts ...TokenOption) *TokenParser {
	p := &TokenParser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the credential from raw. Every failure wraps
// auth.ErrInvalidResponse.
func (p *TokenParser) Parse(raw string) (auth.Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return auth.Credential{}, oops.Code("PROVIDER_TOKEN_INVALID").
			Wrapf(auth.ErrInvalidResponse, "id token is empty")
	}

	var claims idTokenClaims
	var err error
	if len(p.secret) > 0 {
		_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return p.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(raw, &claims)
	}
	if err != nil {
		return auth.Credential{}, oops.Code("PROVIDER_TOKEN_INVALID").
			With("reason", err.Error()).
			Wrap(auth.ErrInvalidResponse)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return auth.Credential{}, oops.Code("PROVIDER_TOKEN_INVALID").
			Wrapf(auth.ErrInvalidResponse, "id token has no subject")
	}

	cred := auth.Credential{
		ProviderID: subject,
		Email:      strings.TrimSpace(claims.Email),
	}
	name := auth.NameComponents{
		GivenName:  claims.GivenName,
		MiddleName: claims.MiddleName,
		FamilyName: claims.FamilyName,
		Nickname:   claims.Nickname,
	}
	if name.Formatted() != "" {
		cred.FullName = &name
	}
	return cred, nil
}
