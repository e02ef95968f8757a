// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the marketplace tooling configuration.
//
// Values come, in increasing precedence, from built-in defaults, the
// .marketplace.yaml file in the marketplace root or the working directory,
// and MARKETPLACE_* environment variables (MARKETPLACE_AIRTABLE_BASE_ID
// overrides airtable.base_id). A .env file next to the config file is loaded
// into the process environment first; variables already set win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/policy"
	"github.com/stacklok/toolhive-marketplace/registry"
	"github.com/stacklok/toolhive-marketplace/validator"
)

const (
	// FileName is the config file name without extension.
	FileName = ".marketplace"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "MARKETPLACE"
	// DotEnvFile is loaded into the environment when present.
	DotEnvFile = ".env"
)

// Config is the complete configuration.
type Config struct {
	Root     string         `mapstructure:"root"`
	Debug    bool           `mapstructure:"debug"`
	Validate ValidateConfig `mapstructure:"validate"`
	Airtable AirtableConfig `mapstructure:"airtable"`
	Export   ExportConfig   `mapstructure:"export"`
	OCI      OCIConfig      `mapstructure:"oci"`
	Serve    ServeConfig    `mapstructure:"serve"`

	// File is the config file that was read; empty when none was found
	File string `mapstructure:"-"`
}

// ValidateConfig configures validation.
type ValidateConfig struct {
	Concurrency  int                `mapstructure:"concurrency"`
	ChangedSince string             `mapstructure:"changed_since"`
	Rules        []policy.Rule      `mapstructure:"rules"`
	Scripts      []validator.Script `mapstructure:"scripts"`
}

// AirtableConfig configures the catalog sync. The API key is read from
// AIRTABLE_API_KEY and never from the config file.
type AirtableConfig struct {
	BaseID            string  `mapstructure:"base_id"`
	Table             string  `mapstructure:"table"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// StatePath is the sync state database; the XDG state home when empty
	StatePath string `mapstructure:"state_path"`
}

// ExportConfig configures registry export.
type ExportConfig struct {
	Namespace       string `mapstructure:"namespace"`
	OCIRepository   string `mapstructure:"oci_repository"`
	GroupByCategory bool   `mapstructure:"group_by_category"`
}

// OCIConfig configures packaging and registry access.
type OCIConfig struct {
	// StoreRoot is the local OCI layout; the XDG data home when empty
	StoreRoot string `mapstructure:"store_root"`
	PlainHTTP bool   `mapstructure:"plain_http"`
}

// ServeConfig configures the webhook service. Secrets are read from
// GITHUB_WEBHOOK_SECRET and RESEND_WEBHOOK_SECRET.
type ServeConfig struct {
	Addr      string `mapstructure:"addr"`
	Branch    string `mapstructure:"branch"`
	LogFormat string `mapstructure:"log_format"`
}

// Options controls Load.
type Options struct {
	// Root is the marketplace root searched for the config file
	Root string
	// File is an explicit config file; searched for when empty
	File string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("debug", false)
	v.SetDefault("validate.concurrency", validator.DefaultConcurrency)
	v.SetDefault("validate.changed_since", "")
	v.SetDefault("validate.rules", []policy.Rule{})
	v.SetDefault("validate.scripts", []validator.Script{})
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.table", "Plugins")
	v.SetDefault("airtable.requests_per_second", 5.0)
	v.SetDefault("airtable.state_path", "")
	v.SetDefault("export.namespace", registry.DefaultNamespace)
	v.SetDefault("export.oci_repository", "")
	v.SetDefault("export.group_by_category", true)
	v.SetDefault("oci.store_root", "")
	v.SetDefault("oci.plain_http", false)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.branch", "")
	v.SetDefault("serve.log_format", "json")
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if err := LoadDotEnv(opts.Root, "."); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(opts.Root)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	// An explicit root wins over the configured one.
	if opts.Root != "." || cfg.Root == "" {
		cfg.Root = opts.Root
	}

	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// check checks value ranges and compiles policy rules.
func (c *Config) check() error {
	var errs []error
	if c.Validate.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("validate.concurrency must be positive, got %d", c.Validate.Concurrency))
	}
	if c.Airtable.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("airtable.requests_per_second must not be negative"))
	}
	if _, err := logging.ParseFormat(c.Serve.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("serve.log_format: %w", err))
	}
	for i, s := range c.Validate.Scripts {
		if len(s.Command) == 0 {
			errs = append(errs, fmt.Errorf("validate.scripts[%d]: command is required", i))
		}
	}
	if _, err := c.RuleSet(); err != nil {
		errs = append(errs, fmt.Errorf("validate.rules: %w", err))
	}
	return errors.Join(errs...)
}

// RuleSet compiles the configured policy rules.
func (c *Config) RuleSet() (*policy.RuleSet, error) {
	return policy.CompileRules(c.Validate.Rules)
}

// ValidatorOptions returns the validator options of the configuration.
func (c *Config) ValidatorOptions() (validator.Options, error) {
	rules, err := c.RuleSet()
	if err != nil {
		return validator.Options{}, err
	}
	return validator.Options{
		Root:         c.Root,
		Concurrency:  c.Validate.Concurrency,
		ChangedSince: c.Validate.ChangedSince,
		Rules:        rules,
		Scripts:      c.Validate.Scripts,
	}, nil
}

// LoadDotEnv loads the first .env file found in dirs into the process
// environment without overriding variables that are already set.
func LoadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, DotEnvFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		return nil
	}
	return nil
}
