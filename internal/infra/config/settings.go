package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentloop/ralph/internal/app/config"
)

// RawSettings represents the structure of setting.json file.
// JSON tags are used for marshaling/unmarshaling.
type RawSettings struct {
	// Core settings
	Home    *string `json:"home"`
	Harness *string `json:"harness"`
	Model   *string `json:"model"`

	// Loop settings
	CompletionPromise    *string `json:"completion_promise"`
	MinIterations        *int    `json:"min_iterations"`
	MaxIterations        *int    `json:"max_iterations"`
	InactivityTimeoutSec *int    `json:"inactivity_timeout_sec"`
	ErrorThreshold       *int    `json:"error_threshold"`
	ExitOnError          *bool   `json:"exit_on_error"`
	AllowAll             *bool   `json:"allow_all"`
	NoCommit             *bool   `json:"no_commit"`
	SkipValidation       *bool   `json:"skip_validation"`

	// Worktree settings
	WorktreesEnabled *bool   `json:"worktrees_enabled"`
	WorktreesDir     *string `json:"worktrees_dir"`

	// Storage
	DBPath   *string `json:"db_path"`
	AuditLog *string `json:"audit_log"`

	// Transcript archive
	ArchiveBucket *string `json:"archive_bucket"`
	ArchivePrefix *string `json:"archive_prefix"`
	ArchiveRegion *string `json:"archive_region"`

	// Logging
	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings loads configuration from setting.json only.
// Priority: setting.json > defaults
func LoadSettings(baseDir string) (*config.AppConfig, error) {
	// Start with empty settings
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	// Try to load setting.json
	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	}

	// No environment variable overrides - setting.json only

	// Apply defaults
	applyDefaults(settings, baseDir)

	// Build AppConfig
	return buildAppConfig(settings, configSource, settingPath), nil
}

// applyDefaults fills in default values for any nil fields
func applyDefaults(settings *RawSettings, baseDir string) {
	// Core defaults
	if settings.Home == nil {
		v := baseDir
		settings.Home = &v
	}
	if settings.Harness == nil {
		v := "claude"
		settings.Harness = &v
	}
	if settings.Model == nil {
		v := ""
		settings.Model = &v
	}

	// Loop defaults
	if settings.CompletionPromise == nil {
		v := "COMPLETE"
		settings.CompletionPromise = &v
	}
	if settings.MinIterations == nil {
		v := 1
		settings.MinIterations = &v
	}
	if settings.MaxIterations == nil {
		v := 0 // unlimited
		settings.MaxIterations = &v
	}
	if settings.InactivityTimeoutSec == nil {
		v := 900 // 15 minutes for long harness turns
		settings.InactivityTimeoutSec = &v
	}
	if settings.ErrorThreshold == nil {
		v := 10
		settings.ErrorThreshold = &v
	}

	// Feature flags (default to false)
	if settings.ExitOnError == nil {
		v := false
		settings.ExitOnError = &v
	}
	if settings.AllowAll == nil {
		v := false
		settings.AllowAll = &v
	}
	if settings.NoCommit == nil {
		v := false
		settings.NoCommit = &v
	}
	if settings.SkipValidation == nil {
		v := false
		settings.SkipValidation = &v
	}

	// Worktree settings
	if settings.WorktreesEnabled == nil {
		v := false
		settings.WorktreesEnabled = &v
	}
	if settings.WorktreesDir == nil {
		v := "worktrees"
		settings.WorktreesDir = &v
	}

	// Storage paths (empty means derive from home)
	if settings.DBPath == nil {
		v := ""
		settings.DBPath = &v
	}
	if settings.AuditLog == nil {
		v := ""
		settings.AuditLog = &v
	}

	// Transcript archive (empty bucket disables archiving)
	if settings.ArchiveBucket == nil {
		v := ""
		settings.ArchiveBucket = &v
	}
	if settings.ArchivePrefix == nil {
		v := ""
		settings.ArchivePrefix = &v
	}
	if settings.ArchiveRegion == nil {
		v := ""
		settings.ArchiveRegion = &v
	}

	// Logging
	if settings.StderrLevel == nil {
		v := "warn" // Default to WARN level
		settings.StderrLevel = &v
	}
}

// buildAppConfig converts RawSettings to AppConfig
func buildAppConfig(settings *RawSettings, configSource, settingPath string) *config.AppConfig {
	return config.NewAppConfig(
		*settings.Home,
		*settings.Harness,
		*settings.Model,
		*settings.CompletionPromise,
		*settings.MinIterations,
		*settings.MaxIterations,
		*settings.InactivityTimeoutSec,
		*settings.ErrorThreshold,
		*settings.ExitOnError,
		*settings.AllowAll,
		*settings.NoCommit,
		*settings.SkipValidation,
		*settings.WorktreesEnabled,
		*settings.WorktreesDir,
		*settings.DBPath,
		*settings.AuditLog,
		*settings.ArchiveBucket,
		*settings.ArchivePrefix,
		*settings.ArchiveRegion,
		*settings.StderrLevel,
		configSource,
		settingPath,
	)
}

// CreateDefaultSettings creates a default setting.json content
func CreateDefaultSettings() []byte {
	settings := &RawSettings{}
	applyDefaults(settings, ".ralph")

	data, _ := json.MarshalIndent(settings, "", "  ")
	return data
}
