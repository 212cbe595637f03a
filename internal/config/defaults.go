package config

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jbousquie/leontine/internal/domain"
)

// Poll periods the service was tuned for.
const (
	defaultStatusCheckSeconds = 20
	defaultAPICheckSeconds    = 30
)

// AppDir returns the per-user directory holding settings and the job
// ledger.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".leontine")
}

// DefaultSettings returns baseline configuration for first launch. The
// API URL is deliberately empty: the user supplies it.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		StatusCheckIntervalSeconds: defaultStatusCheckSeconds,
		APICheckIntervalSeconds:    defaultAPICheckSeconds,
	}
}

// EnsureClientID fills in a persistent installation id on first use and
// reports whether the settings changed.
func EnsureClientID(cfg *domain.Settings) bool {
	if cfg.ClientID != "" {
		return false
	}
	cfg.ClientID = uuid.NewString()
	return true
}
