// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authstate configuration from defaults, a YAML file and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
)

// Config is the complete authstate configuration.
type Config struct {
	LogFormat     string             `koanf:"log_format"`
	LogLevel      string             `koanf:"log_level"`
	Locale        string             `koanf:"locale"`
	StorePath     string             `koanf:"store_path"`
	DatabaseURL   string             `koanf:"database_url"`
	MetricsAddr   string             `koanf:"metrics_addr"`
	PurgePrefixes []string           `koanf:"purge_prefixes"`
	Provider      ProviderConfig     `koanf:"provider"`
	Reachability  ReachabilityConfig `koanf:"reachability"`
}

// ProviderConfig configures the identity provider adapters.
type ProviderConfig struct {
	StatusURL   string        `koanf:"status_url"`
	Timeout     time.Duration `koanf:"timeout"`
	TokenSecret string        `koanf:"token_secret"`
}

// ReachabilityConfig configures the TCP reachability monitor. An empty
// ProbeAddr disables probing and the network is assumed reachable.
type ReachabilityConfig struct {
	ProbeAddr string        `koanf:"probe_addr"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Defaults returns the configuration used when nothing else is set.
// storePath is usually xdg.StorePath.
func Defaults(storePath string) Config {
	return Config{
		LogFormat: "text",
		LogLevel:  "info",
		Locale:    "en",
		StorePath: storePath,
		Provider: ProviderConfig{
			Timeout: 10 * time.Second,
		},
		Reachability: ReachabilityConfig{
			Interval: 15 * time.Second,
			Timeout:  3 * time.Second,
		},
	}
}

// flagKeys maps flag names to config keys where the name is not simply the
// key with dashes for underscores.
var flagKeys = map[string]string{
	"purge-prefix":            "purge_prefixes",
	"provider-status-url":     "provider.status_url",
	"provider-timeout":        "provider.timeout",
	"provider-token-secret":   "provider.token_secret",
	"reachability-probe-addr": "reachability.probe_addr",
	"reachability-interval":   "reachability.interval",
	"reachability-timeout":    "reachability.timeout",
}

// skipFlags are registered on the same flag set but are not config keys.
var skipFlags = map[string]bool{
	"config":  true,
	"help":    true,
	"version": true,
}

// RegisterFlags adds the configuration flags to fs with defaults from d.
func RegisterFlags(fs *pflag.FlagSet, d Config) {
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("locale", d.Locale, "locale used to recognise localized network errors")
	fs.String("store-path", d.StorePath, "path of the local key-value database")
	fs.String("database-url", d.DatabaseURL, "PostgreSQL URL of the user directory")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.StringSlice("purge-prefix", d.PurgePrefixes, "local store key prefix purged on sign-out with --clear-local-data (repeatable)")
	fs.String("provider-status-url", d.Provider.StatusURL, "base URL of the provider credential-state API")
	fs.Duration("provider-timeout", d.Provider.Timeout, "timeout of provider requests")
	fs.String("provider-token-secret", d.Provider.TokenSecret, "HS256 secret used to verify ID tokens (empty = not verified)")
	fs.String("reachability-probe-addr", d.Reachability.ProbeAddr, "host:port probed for reachability (empty = always reachable)")
	fs.Duration("reachability-interval", d.Reachability.Interval, "reachability probe interval")
	fs.Duration("reachability-timeout", d.Reachability.Timeout, "reachability probe timeout")
}

// Source says where to read the config file from. A missing file is an error
// only when Required is set.
type Source struct {
	Path     string
	Required bool
}

// Load builds the configuration from d, the file in src and the flags in fs.
// Flags only override file and default values when they were set explicitly.
func Load(d Config, src Source, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := setDefaults(k, d); err != nil {
		return nil, err
	}

	if src.Path != "" {
		err := k.Load(file.Provider(src.Path), yaml.Parser())
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist) && !src.Required:
		default:
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", src.Path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if skipFlags[f.Name] {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf, d Config) error {
	defaults := map[string]any{
		"log_format":              d.LogFormat,
		"log_level":               d.LogLevel,
		"locale":                  d.Locale,
		"store_path":              d.StorePath,
		"database_url":            d.DatabaseURL,
		"metrics_addr":            d.MetricsAddr,
		"purge_prefixes":          d.PurgePrefixes,
		"provider.status_url":     d.Provider.StatusURL,
		"provider.timeout":        d.Provider.Timeout,
		"provider.token_secret":   d.Provider.TokenSecret,
		"reachability.probe_addr": d.Reachability.ProbeAddr,
		"reachability.interval":   d.Reachability.Interval,
		"reachability.timeout":    d.Reachability.Timeout,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return oops.Code("CONFIG_DEFAULTS_INVALID").With("key", key).Wrap(err)
		}
	}
	return nil
}

// Validate checks field values. It does not check that optional components
// are configured; callers that need them check for themselves.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").With("log_level", c.LogLevel).
			Errorf("log_level must be one of debug, info, warn, error")
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return oops.Code("CONFIG_INVALID").With("locale", c.Locale).Wrap(err)
	}
	if c.StorePath == "" {
		return oops.Code("CONFIG_INVALID").Errorf("store_path is required")
	}
	if c.Provider.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("provider.timeout", c.Provider.Timeout).
			Errorf("provider.timeout must be positive")
	}
	if c.Reachability.ProbeAddr != "" && (c.Reachability.Interval <= 0 || c.Reachability.Timeout <= 0) {
		return oops.Code("CONFIG_INVALID").
			With("reachability.interval", c.Reachability.Interval).
			With("reachability.timeout", c.Reachability.Timeout).
			Errorf("reachability interval and timeout must be positive")
	}
	for _, p := range c.PurgePrefixes {
		if strings.TrimSpace(p) == "" {
			return oops.Code("CONFIG_INVALID").Errorf("purge_prefixes must not contain empty prefixes")
		}
	}
	return nil
}

// LocaleTag returns the parsed locale, or English when it does not parse.
func (c *Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}
