// Package config loads the operational pilot configuration: routing pools,
// bounce denylists, and autoreply settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-backed configuration. Runtime knobs (bind address,
// data dir, tracing) stay on the command line.
type Config struct {
	// PoolUser is the shared helpdesk identity. Tickets owned by it are
	// claimable by any tech.
	PoolUser string `yaml:"pool_user"`

	// Pools maps a routing group to its ordered assignee rotation.
	Pools map[string][]string `yaml:"pools"`

	Bounce    BounceConfig    `yaml:"bounce"`
	Autoreply AutoreplyConfig `yaml:"autoreply"`
}

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BounceConfig is the bounce classifier denylist.
type BounceConfig struct {
	SenderPrefixes  []string `yaml:"sender_prefixes"`
	SubjectContains []string `yaml:"subject_contains"`
	// GuardTTL bounds how often a bounce breadcrumb is recorded for the
	// same (ticket, sender, subject).
	GuardTTL Duration `yaml:"guard_ttl"`
}

// AutoreplyConfig controls autoreply draft generation.
type AutoreplyConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RequireCustomer bool     `yaml:"require_customer"`
	BaseURL         string   `yaml:"base_url"`
	DedupeTTL       Duration `yaml:"dedupe_ttl"`
	// ConfirmSecret signs customer confirm-link tokens.
	ConfirmSecret string `yaml:"confirm_secret"`
}

// Default returns the built-in pilot configuration.
func Default() Config {
	return Config{
		PoolUser: "helpdesk@local.test",
		Pools:    map[string][]string{},
		Bounce: BounceConfig{
			SenderPrefixes:  []string{"mailer-daemon@", "postmaster@"},
			SubjectContains: []string{"undelivered mail returned to sender"},
			GuardTTL:        Duration(time.Hour),
		},
		Autoreply: AutoreplyConfig{
			Enabled:   true,
			BaseURL:   "http://localhost:8080",
			DedupeTTL: Duration(24 * time.Hour),
		},
	}
}

// Load reads a YAML config file, layered over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Bounce.GuardTTL <= 0 {
		cfg.Bounce.GuardTTL = Duration(time.Hour)
	}
	if cfg.Autoreply.DedupeTTL <= 0 {
		cfg.Autoreply.DedupeTTL = Duration(24 * time.Hour)
	}
	return cfg, nil
}
