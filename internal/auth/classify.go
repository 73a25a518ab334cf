// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"slices"
	"strings"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classification separates environment-caused failures from backend-caused ones.
type Classification string

// Failure classifications.
const (
	ClassNetwork Classification = "network"
	ClassService Classification = "service"
)

// TransportCode identifies a transport-layer failure.
type TransportCode string

// Transport failure codes treated as network failures.
const (
	TransportNotConnected         TransportCode = "not_connected"
	TransportConnectionLost       TransportCode = "connection_lost"
	TransportCannotConnectToHost  TransportCode = "cannot_connect_to_host"
	TransportTimedOut             TransportCode = "timed_out"
	TransportCannotFindHost       TransportCode = "cannot_find_host"
	TransportDNSLookupFailed      TransportCode = "dns_lookup_failed"
	TransportInternationalRoaming TransportCode = "international_roaming_off"
	TransportDataNotAllowed       TransportCode = "data_not_allowed"
)

var networkTransportCodes = []TransportCode{
	TransportNotConnected,
	TransportConnectionLost,
	TransportCannotConnectToHost,
	TransportTimedOut,
	TransportCannotFindHost,
	TransportDNSLookupFailed,
	TransportInternationalRoaming,
	TransportDataNotAllowed,
}

// TransportError is a failure reported by an HTTP or socket layer with a known code.
type TransportError struct {
	Code TransportCode
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport: " + string(e.Code)
	}
	return "transport: " + string(e.Code) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// FailureReasoner is implemented by errors that carry a reason separate from their message.
type FailureReasoner interface {
	FailureReason() string
}

var networkErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ENETDOWN,
	syscall.ENETUNREACH,
	syscall.ENETRESET,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EPIPE,
	syscall.ENOTCONN,
}

var directoryUnavailableCodes = []codes.Code{
	codes.Unavailable,
	codes.ResourceExhausted,
	codes.DeadlineExceeded,
	codes.Aborted,
}

// networkKeywords lists message fragments that suggest a connectivity problem.
// This is a heuristic: providers localize and reword messages, so a miss here
// only means the error is classified as a service failure.
var networkKeywords = map[language.Tag][]string{
	language.English:    {"network", "connection", "internet", "timeout", "timed out", "unreachable", "offline"},
	language.Spanish:    {"error de red", "conexión", "internet", "tiempo de espera", "sin conexión", "inalcanzable", "fuera de línea"},
	language.Portuguese: {"rede", "conexão", "internet", "tempo limite", "sem conexão", "inacessível", "offline"},
	language.French:     {"réseau", "connexion", "internet", "délai d'attente", "hors ligne", "injoignable"},
	language.German:     {"netzwerk", "verbindung", "internet", "zeitüberschreitung", "nicht erreichbar", "offline"},
}

var keywordLocales = []language.Tag{
	language.English,
	language.Spanish,
	language.Portuguese,
	language.French,
	language.German,
}

var keywordMatcher = language.NewMatcher(keywordLocales)

// NetworkKeywords returns the case-folded keywords for locale. English is
// always included; the closest supported locale is added when it matches.
func NetworkKeywords(locale language.Tag) []string {
	words := slices.Clone(networkKeywords[language.English])
	if _, idx, conf := keywordMatcher.Match(locale); conf != language.No && keywordLocales[idx] != language.English {
		words = append(words, networkKeywords[keywordLocales[idx]]...)
	}
	fold := cases.Fold()
	for i, w := range words {
		words[i] = fold.String(w)
	}
	return words
}

// Classifier decides whether a failure is a network or a service failure.
type Classifier struct {
	reach    Reachability
	keywords []string
}

// NewClassifier creates a Classifier. reach may be nil, in which case the
// reachability override is skipped.
func NewClassifier(reach Reachability, locale language.Tag) *Classifier {
	return &Classifier{
		reach:    reach,
		keywords: NetworkKeywords(locale),
	}
}

// Classify applies the rules in order; the first match wins.
func (c *Classifier) Classify(err error) Classification {
	switch {
	case c.reach != nil && !c.reach.IsReachable():
		return ClassNetwork
	case err == nil:
		return ClassService
	case isTransportFailure(err):
		return ClassNetwork
	case isDirectoryUnavailable(err):
		return ClassNetwork
	case isNetworkErrno(err):
		return ClassNetwork
	case c.mentionsNetwork(err):
		return ClassNetwork
	default:
		return ClassService
	}
}

// TransportCodeOf maps err to a transport code when one applies.
func TransportCodeOf(err error) (TransportCode, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code, true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return TransportCannotFindHost, true
		}
		if dnsErr.IsTimeout {
			return TransportTimedOut, true
		}
		return TransportDNSLookupFailed, true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return TransportTimedOut, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimedOut, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return TransportCannotConnectToHost, true
		}
		return TransportConnectionLost, true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return TransportConnectionLost, true
	}
	return "", false
}

func isTransportFailure(err error) bool {
	code, ok := TransportCodeOf(err)
	return ok && slices.Contains(networkTransportCodes, code)
}

func isDirectoryUnavailable(err error) bool {
	if st, ok := status.FromError(err); ok && slices.Contains(directoryUnavailableCodes, st.Code()) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) ||
			pgerrcode.IsTransactionRollback(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.Timeout(err)
}

func isNetworkErrno(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && slices.Contains(networkErrnos, errno)
}

func (c *Classifier) mentionsNetwork(err error) bool {
	fold := cases.Fold()
	texts := []string{fold.String(err.Error())}
	var reasoner FailureReasoner
	if errors.As(err, &reasoner) {
		texts = append(texts, fold.String(reasoner.FailureReason()))
	}
	for _, text := range texts {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
