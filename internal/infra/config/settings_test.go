package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name        string
		setupFunc   func(t *testing.T, tmpDir string)
		wantHarness string
		wantPromise string
		wantTimeout int
		wantSource  string
	}{
		{
			name:        "Default values only",
			setupFunc:   nil,
			wantHarness: "claude",
			wantPromise: "COMPLETE",
			wantTimeout: 900,
			wantSource:  "default",
		},
		{
			name: "JSON file only",
			setupFunc: func(t *testing.T, tmpDir string) {
				settings := map[string]interface{}{
					"harness":                "opencode",
					"completion_promise":     "DONE",
					"inactivity_timeout_sec": 120,
				}
				data, err := json.MarshalIndent(settings, "", "  ")
				if err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(tmpDir, "setting.json"), data, 0644); err != nil {
					t.Fatal(err)
				}
			},
			wantHarness: "opencode",
			wantPromise: "DONE",
			wantTimeout: 120,
			wantSource:  "json",
		},
		{
			name: "Partial JSON keeps defaults for missing fields",
			setupFunc: func(t *testing.T, tmpDir string) {
				settings := map[string]interface{}{
					"harness": "codex",
				}
				data, err := json.MarshalIndent(settings, "", "  ")
				if err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(tmpDir, "setting.json"), data, 0644); err != nil {
					t.Fatal(err)
				}
			},
			wantHarness: "codex",
			wantPromise: "COMPLETE",
			wantTimeout: 900,
			wantSource:  "json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temp directory
			tmpDir, err := os.MkdirTemp("", "config-test-*")
			if err != nil {
				t.Fatal(err)
			}
			defer os.RemoveAll(tmpDir)

			// Setup test data
			if tt.setupFunc != nil {
				tt.setupFunc(t, tmpDir)
			}

			// Load settings
			cfg, err := LoadSettings(tmpDir)
			if err != nil {
				t.Fatalf("LoadSettings() error = %v", err)
			}

			// Check values
			if got := cfg.Harness(); got != tt.wantHarness {
				t.Errorf("Harness() = %v, want %v", got, tt.wantHarness)
			}
			if got := cfg.CompletionPromise(); got != tt.wantPromise {
				t.Errorf("CompletionPromise() = %v, want %v", got, tt.wantPromise)
			}
			if got := cfg.InactivityTimeoutSec(); got != tt.wantTimeout {
				t.Errorf("InactivityTimeoutSec() = %v, want %v", got, tt.wantTimeout)
			}
			if got := cfg.ConfigSource(); got != tt.wantSource {
				t.Errorf("ConfigSource() = %v, want %v", got, tt.wantSource)
			}
		})
	}
}

func TestLoadSettingsHomeDefaultsToBaseDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-home-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg, err := LoadSettings(tmpDir)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	if got := cfg.Home(); got != tmpDir {
		t.Errorf("Home() = %v, want %v", got, tmpDir)
	}
}

func TestLoadSettingsInvalidJSON(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-invalid-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "setting.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(tmpDir); err == nil {
		t.Error("LoadSettings() should fail on malformed setting.json")
	}
}

func TestInactivityTimeoutDuration(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-duration-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg, err := LoadSettings(tmpDir)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	if got := cfg.InactivityTimeout(); got != 900*time.Second {
		t.Errorf("InactivityTimeout() = %v, want %v", got, 900*time.Second)
	}
}

func TestCreateDefaultSettings(t *testing.T) {
	data := CreateDefaultSettings()

	// Parse the JSON
	var settings RawSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatalf("Failed to parse default settings: %v", err)
	}

	// Check some key defaults
	if settings.Home == nil || *settings.Home != ".ralph" {
		t.Errorf("Default home should be .ralph")
	}
	if settings.Harness == nil || *settings.Harness != "claude" {
		t.Errorf("Default harness should be claude")
	}
	if settings.InactivityTimeoutSec == nil || *settings.InactivityTimeoutSec != 900 {
		t.Errorf("Default inactivity_timeout_sec should be 900")
	}
	if settings.ErrorThreshold == nil || *settings.ErrorThreshold != 10 {
		t.Errorf("Default error_threshold should be 10")
	}
	if settings.MinIterations == nil || *settings.MinIterations != 1 {
		t.Errorf("Default min_iterations should be 1")
	}
	if settings.ExitOnError == nil || *settings.ExitOnError != false {
		t.Errorf("Default exit_on_error should be false")
	}
}
