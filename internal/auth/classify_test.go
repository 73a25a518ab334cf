// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/holomush/authstate/internal/auth"
	"github.com/holomush/authstate/internal/netreach"
)

type reasonedError struct {
	msg, reason string
}

func (e reasonedError) Error() string         { return e.msg }
func (e reasonedError) FailureReason() string { return e.reason }

func TestClassifier_ReachabilityOverrides(t *testing.T) {
	c := auth.NewClassifier(netreach.NewStatic(false), language.English)

	tests := []error{
		nil,
		errors.New("internal server error"),
		status.Error(codes.InvalidArgument, "bad request"),
		&pgconn.PgError{Code: pgerrcode.UniqueViolation},
	}
	for _, err := range tests {
		assert.Equal(t, auth.ClassNetwork, c.Classify(err), "error %v", err)
	}
}

func TestClassifier_TransportCodes(t *testing.T) {
	c := auth.NewClassifier(netreach.NewStatic(true), language.English)

	codes := []auth.TransportCode{
		auth.TransportNotConnected,
		auth.TransportConnectionLost,
		auth.TransportCannotConnectToHost,
		auth.TransportTimedOut,
		auth.TransportCannotFindHost,
		auth.TransportDNSLookupFailed,
		auth.TransportInternationalRoaming,
		auth.TransportDataNotAllowed,
	}
	for _, code := range codes {
		t.Run(string(code), func(t *testing.T) {
			err := fmt.Errorf("lookup: %w", &auth.TransportError{Code: code})
			assert.Equal(t, auth.ClassNetwork, c.Classify(err))
		})
	}
}

func TestTransportCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want auth.TransportCode
	}{
		{"dns not found", &net.DNSError{Err: "no such host", Name: "dir.example", IsNotFound: true}, auth.TransportCannotFindHost},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "dir.example", IsTimeout: true}, auth.TransportTimedOut},
		{"dns other", &net.DNSError{Err: "server misbehaving", Name: "dir.example"}, auth.TransportDNSLookupFailed},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), auth.TransportTimedOut},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, auth.TransportCannotConnectToHost},
		{"read", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}, auth.TransportConnectionLost},
		{"unexpected eof", io.ErrUnexpectedEOF, auth.TransportConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := auth.TransportCodeOf(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := auth.TransportCodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassifier_DirectoryCodes(t *testing.T) {
	c := auth.NewClassifier(netreach.NewStatic(true), language.English)

	network := map[string]error{
		"grpc unavailable":        status.Error(codes.Unavailable, "down"),
		"grpc resource exhausted": status.Error(codes.ResourceExhausted, "quota"),
		"grpc deadline exceeded":  status.Error(codes.DeadlineExceeded, "slow"),
		"grpc aborted":            status.Error(codes.Aborted, "conflict"),
		"pg admin shutdown":       &pgconn.PgError{Code: pgerrcode.AdminShutdown},
		"pg too many connections": &pgconn.PgError{Code: pgerrcode.TooManyConnections},
		"pg connection failure":   &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
		"pg serialization":        &pgconn.PgError{Code: pgerrcode.SerializationFailure},
		"pg query canceled":       &pgconn.PgError{Code: pgerrcode.QueryCanceled},
		"wrapped by oops":         oops.Code("DIRECTORY_LOOKUP_FAILED").Wrap(status.Error(codes.Unavailable, "down")),
	}
	for name, err := range network {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, auth.ClassNetwork, c.Classify(err))
		})
	}

	service := map[string]error{
		"grpc permission denied": status.Error(codes.PermissionDenied, "nope"),
		"grpc internal":          status.Error(codes.Internal, "bug"),
		"pg unique violation":    &pgconn.PgError{Code: pgerrcode.UniqueViolation},
		"pg undefined table":     &pgconn.PgError{Code: pgerrcode.UndefinedTable},
	}
	for name, err := range service {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, auth.ClassService, c.Classify(err))
		})
	}
}

func TestClassifier_Errnos(t *testing.T) {
	c := auth.NewClassifier(netreach.NewStatic(true), language.English)

	errnos := []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.ENETDOWN,
		syscall.ENETUNREACH,
		syscall.EHOSTUNREACH,
		syscall.ETIMEDOUT,
		syscall.EPIPE,
	}
	for _, errno := range errnos {
		t.Run(errno.Error(), func(t *testing.T) {
			assert.Equal(t, auth.ClassNetwork, c.Classify(fmt.Errorf("write: %w", errno)))
		})
	}

	assert.Equal(t, auth.ClassService, c.Classify(fmt.Errorf("open: %w", syscall.EACCES)))
}

func TestClassifier_Keywords(t *testing.T) {
	tests := []struct {
		name   string
		locale language.Tag
		err    error
		want   auth.Classification
	}{
		{"english message", language.English, errors.New("The Network Connection was lost"), auth.ClassNetwork},
		{"english offline", language.English, errors.New("device appears to be OFFLINE"), auth.ClassNetwork},
		{"failure reason", language.English, reasonedError{msg: "request failed", reason: "Internet unavailable"}, auth.ClassNetwork},
		{"spanish locale", language.MustParse("es-MX"), errors.New("Sin conexión a la red"), auth.ClassNetwork},
		{"german locale", language.German, errors.New("Zeitüberschreitung der Anfrage"), auth.ClassNetwork},
		{"french locale", language.French, errors.New("Réseau injoignable"), auth.ClassNetwork},
		{"spanish text without spanish locale", language.English, errors.New("sin conexión"), auth.ClassService},
		{"english always included", language.Portuguese, errors.New("request timeout"), auth.ClassNetwork},
		{"no match", language.English, errors.New("invalid profile"), auth.ClassService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := auth.NewClassifier(netreach.NewStatic(true), tt.locale)
			assert.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestClassifier_ServiceFallback(t *testing.T) {
	c := auth.NewClassifier(netreach.NewStatic(true), language.English)

	assert.Equal(t, auth.ClassService, c.Classify(nil))
	assert.Equal(t, auth.ClassService, c.Classify(errors.New("profile rejected")))
}

func TestClassifier_NilReachability(t *testing.T) {
	c := auth.NewClassifier(nil, language.English)
	assert.Equal(t, auth.ClassService, c.Classify(errors.New("profile rejected")))
}

func TestNetworkKeywords(t *testing.T) {
	en := auth.NetworkKeywords(language.English)
	assert.Contains(t, en, "network")

	pt := auth.NetworkKeywords(language.MustParse("pt-BR"))
	assert.Contains(t, pt, "network")
	assert.Contains(t, pt, "conexão")

	unsupported := auth.NetworkKeywords(language.Japanese)
	assert.ElementsMatch(t, en, unsupported)
}
