// Package daemon wires the ecoboard process: configuration, store, services,
// the settlement sweeper, and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	API      APIConfig      `toml:"api"`
	Store    StoreConfig    `toml:"store"`
	Auth     AuthConfig     `toml:"auth"`
	Approval ApprovalConfig `toml:"approval"`
	Rewards  RewardsConfig  `toml:"rewards"`
	Sweep    SweepConfig    `toml:"sweep"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// StoreConfig locates the sqlite database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// AuthConfig maps static bearer tokens to user ids for the built-in
// verifier. Unknown or missing tokens degrade to the "default" identity.
type AuthConfig struct {
	Tokens map[string]string `toml:"tokens"`
}

// ApprovalConfig holds the settlement eligibility thresholds.
type ApprovalConfig struct {
	WaitingAgeMinutes  int64 `toml:"waiting_age_m"`
	ResolvedAgeMinutes int64 `toml:"resolved_age_m"`
	WaitingCount       int64 `toml:"waiting_count"`
	ResolvedCount      int64 `toml:"resolved_count"`
}

// RewardsConfig holds the fixed reward amounts.
type RewardsConfig struct {
	ApproveAttendee  int64 `toml:"approve_attendee"`
	CompleteAttendee int64 `toml:"complete_attendee"`
	TrashAttendee    int64 `toml:"trash_attendee"`
	CreatorBonus     int64 `toml:"creator_bonus"`
}

// SweepConfig holds the sweep timing as duration strings ("60s", "5m").
type SweepConfig struct {
	InitialDelay string `toml:"initial_delay"`
	Period       string `toml:"period"`
	Backoff      string `toml:"backoff"`
}

// DefaultConfig returns working defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8640,
			Metrics: true,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Approval: ApprovalConfig{
			WaitingAgeMinutes:  60,
			ResolvedAgeMinutes: 60,
			WaitingCount:       3,
			ResolvedCount:      3,
		},
		Rewards: RewardsConfig{
			ApproveAttendee:  10,
			CompleteAttendee: 25,
			TrashAttendee:    5,
			CreatorBonus:     50,
		},
		Sweep: SweepConfig{
			InitialDelay: "10s",
			Period:       "60s",
			Backoff:      "30s",
		},
	}
}

// LoadConfig reads TOML from path over the defaults. A missing file is not
// an error: defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// parseDurationOr parses a duration string, falling back on bad input.
func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ecoboard.db"
	}
	return filepath.Join(home, ".ecoboard", "ecoboard.db")
}
