// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package kvstore

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// PrefixRemover is a store that can drop a key namespace.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// PrefixPurger clears one per-feature cache namespace on sign-out.
// It implements auth.Purger.
type PrefixPurger struct {
	store  PrefixRemover
	prefix string
	logger *slog.Logger
}

// NewPrefixPurger creates a purger for prefix. An empty prefix is rejected so a
// purge can never wipe the whole store.
func NewPrefixPurger(store PrefixRemover, prefix string, logger *slog.Logger) (*PrefixPurger, error) {
	if store == nil {
		return nil, oops.Code("KVSTORE_PURGER_INVALID").Errorf("store is required")
	}
	if prefix == "" {
		return nil, oops.Code("KVSTORE_PURGER_INVALID").Errorf("prefix cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefixPurger{store: store, prefix: prefix, logger: logger}, nil
}

// Purge removes every key under the prefix.
func (p *PrefixPurger) Purge(ctx context.Context) error {
	n, err := p.store.RemovePrefix(ctx, p.prefix)
	if err != nil {
		return oops.Code("KVSTORE_PURGE_FAILED").With("prefix", p.prefix).Wrap(err)
	}
	p.logger.InfoContext(ctx, "feature cache purged", "prefix", p.prefix, "keys", n)
	return nil
}

// Prefix returns the purged namespace.
func (p *PrefixPurger) Prefix() string {
	return p.prefix
}
