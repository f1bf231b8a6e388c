// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads revdep settings from a .revdep.yaml file, REVDEP_
// environment variables and command-line flags, in increasing order of
// precedence, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AleutianAI/revdep/services/revdep"
)

// FileName is the config file looked up in the working directory.
const FileName = ".revdep.yaml"

// EnvPrefix prefixes every environment override, e.g. REVDEP_LOG_LEVEL.
const EnvPrefix = "REVDEP"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete revdep configuration.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Resolve   ResolveConfig   `mapstructure:"resolve"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Concurrency bounds parallel parsing and graph building. Zero uses
	// GOMAXPROCS.
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

// ProjectConfig describes the analyzed project.
type ProjectConfig struct {
	Cwd               string   `mapstructure:"cwd"`
	AliasConfig       string   `mapstructure:"alias_config"`
	Include           []string `mapstructure:"include"`
	Exclude           []string `mapstructure:"exclude"`
	IncludeExternal   bool     `mapstructure:"include_external"`
	IgnoreTypeImports bool     `mapstructure:"ignore_type_imports"`
}

// ResolveConfig holds path enumeration settings.
type ResolveConfig struct {
	All         bool     `mapstructure:"all"`
	MaxPaths    int      `mapstructure:"max_paths" validate:"gte=0"`
	NotTraverse []string `mapstructure:"not_traverse"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format         string `mapstructure:"format" validate:"oneof=text json yaml"`
	CompactSummary bool   `mapstructure:"compact_summary"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`

	// File, when set, receives a copy of every log line.
	File string `mapstructure:"file"`
}

// CacheConfig controls dependency table caching.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Dir holds the persistent Badger cache. Empty keeps tables in memory
	// only.
	Dir string `mapstructure:"dir"`

	MemoryEntries int           `mapstructure:"memory_entries" validate:"gte=1"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`

	GCInterval     time.Duration `mapstructure:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `mapstructure:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// ServerConfig configures `revdep serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`

	// AllowedRoots restricts the project roots API callers may analyze.
	// Empty allows any absolute path.
	AllowedRoots []string `mapstructure:"allowed_roots"`

	// RateLimit is the sustained requests per second per client. Zero
	// disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=1"`

	// Watch invalidates cached tables when project files change.
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	Exporter     string `mapstructure:"exporter" validate:"oneof=none stdout otlp prometheus"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
}

// defaults are applied before the file, environment and flags.
var defaults = map[string]any{
	"concurrency":              0,
	"resolve.max_paths":        0,
	"output.format":            "text",
	"log.level":                "warn",
	"log.format":               "text",
	"cache.enabled":            false,
	"cache.memory_entries":     64,
	"cache.ttl":                10 * time.Minute,
	"cache.gc_interval":        10 * time.Minute,
	"cache.gc_discard_ratio":   0.5,
	"server.addr":              "127.0.0.1:7331",
	"server.rate_limit":        0.0,
	"server.rate_burst":        20,
	"server.watch":             true,
	"server.debounce":          200 * time.Millisecond,
	"server.shutdown_timeout":  10 * time.Second,
	"telemetry.exporter":       "none",
	"telemetry.otlp_endpoint":  "localhost:4317",
	"telemetry.service_name":   "revdep",
	"project.include_external": false,
}

// FlagKeys maps command-line flag names to config keys. Flags that are
// registered on the bound flag set override every other source when they
// were set explicitly.
var FlagKeys = map[string]string{
	"cwd":                  "project.cwd",
	"alias-config":         "project.alias_config",
	"include":              "project.include",
	"exclude":              "project.exclude",
	"include-node-modules": "project.include_external",
	"ignore-types-imports": "project.ignore_type_imports",
	"all":                  "resolve.all",
	"max-paths":            "resolve.max_paths",
	"not-traverse":         "resolve.not_traverse",
	"format":               "output.format",
	"compact-summary":      "output.compact_summary",
	"log-level":            "log.level",
	"log-format":           "log.format",
	"log-file":             "log.file",
	"cache":                "cache.enabled",
	"cache-dir":            "cache.dir",
	"concurrency":          "concurrency",
	"addr":                 "server.addr",
	"rate-limit":           "server.rate_limit",
	"watch":                "server.watch",
	"telemetry":            "telemetry.exporter",
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string

	// Dir is searched for FileName when File is empty. Defaults to the
	// process working directory.
	Dir string

	// Flags are bound over file and environment values. May be nil.
	Flags *pflag.FlagSet
}

// Load builds the configuration.
//
// # Description
//
// Defaults are overridden by the config file, then by REVDEP_* environment
// variables (nested keys use underscores: REVDEP_CACHE_DIR), then by any
// flag in opts.Flags that was set explicitly. A missing FileName in Dir is
// not an error; a missing explicit File is. Relative project.cwd and
// alias_config values from a file are resolved against the file's
// directory.
//
// # Outputs
//
//   - *Config: Validated configuration.
//   - error: Read, decode or ErrInvalidConfig errors.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only consults keys viper already knows about.
	for _, key := range FlagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	file, err := configFile(opts)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	}

	if opts.Flags != nil {
		if err := BindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.File = file

	if file != "" {
		dir := filepath.Dir(file)
		if !flagChanged(opts.Flags, "cwd") && cfg.Project.Cwd != "" && !filepath.IsAbs(cfg.Project.Cwd) {
			cfg.Project.Cwd = filepath.Join(dir, cfg.Project.Cwd)
		}
		if !flagChanged(opts.Flags, "alias-config") && cfg.Project.AliasConfig != "" && !filepath.IsAbs(cfg.Project.AliasConfig) {
			cfg.Project.AliasConfig = filepath.Join(dir, cfg.Project.AliasConfig)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFile(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config file not found at %s: %w", opts.File, err)
		}
		return opts.File, nil
	}
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("error checking config file %s: %w", candidate, err)
	}
	return "", nil
}

// BindFlags binds every flag in fs that has an entry in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func flagChanged(fs *pflag.FlagSet, name string) bool {
	if fs == nil {
		return false
	}
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Telemetry.Exporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("%w: telemetry.otlp_endpoint is required for the otlp exporter", ErrInvalidConfig)
	}
	return nil
}

// ProjectSpec converts the project section into an engine Project.
func (c *Config) ProjectSpec() revdep.Project {
	return revdep.Project{
		Cwd:               c.Project.Cwd,
		AliasConfig:       c.Project.AliasConfig,
		Include:           c.Project.Include,
		Exclude:           c.Project.Exclude,
		IncludeExternal:   c.Project.IncludeExternal,
		IgnoreTypeImports: c.Project.IgnoreTypeImports,
	}
}
