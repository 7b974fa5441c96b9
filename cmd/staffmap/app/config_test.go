package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/staffmap/pkg/constants"
)

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.SlotMinutes != constants.DefaultSlotMinutes {
		t.Errorf("SlotMinutes = %v, want %v", config.SlotMinutes, constants.DefaultSlotMinutes)
	}
	if !config.Suggestions {
		t.Error("Suggestions should default to true")
	}
	if config.PerformanceBudget != constants.DefaultPerformanceBudget {
		t.Errorf("PerformanceBudget = %v, want %v", config.PerformanceBudget, constants.DefaultPerformanceBudget)
	}
}

// TestConfig_EnvironmentVariables verifies STAFFMAP_* variables.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("STAFFMAP_FORMAT", "json")
	t.Setenv("STAFFMAP_EPSILON", "0.5")
	t.Setenv("STAFFMAP_HISTORY_DB", "/tmp/staffmap-history.db")
	t.Setenv("STAFFMAP_PERFORMANCE_BUDGET", "250ms")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.Epsilon != 0.5 {
		t.Errorf("Epsilon = %v, want 0.5", config.Epsilon)
	}
	if config.HistoryDB != "/tmp/staffmap-history.db" {
		t.Errorf("HistoryDB = %s", config.HistoryDB)
	}
	if config.PerformanceBudget != 250*time.Millisecond {
		t.Errorf("PerformanceBudget = %v, want 250ms", config.PerformanceBudget)
	}
}

// TestLoadConfigFile verifies nested check overrides and the run context.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staffmap.yaml")
	content := `rules: rules.yaml
violation_penalty: 0.25
checks:
  mapping_completeness:
    threshold: 0.5
  business_value:
    weight: 0.2
context:
  shift: night
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}

	if config.Rules != "rules.yaml" {
		t.Errorf("Rules = %s, want rules.yaml", config.Rules)
	}
	if config.ViolationPenalty != 0.25 {
		t.Errorf("ViolationPenalty = %v, want 0.25", config.ViolationPenalty)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %s, want %s", config.ConfigFile, path)
	}

	completeness := config.Checks["mapping_completeness"]
	if completeness.Threshold == nil || *completeness.Threshold != 0.5 || completeness.Weight != nil {
		t.Errorf("mapping_completeness = %+v", completeness)
	}
	value := config.Checks["business_value"]
	if value.Weight == nil || *value.Weight != 0.2 || value.Threshold != nil {
		t.Errorf("business_value = %+v", value)
	}
	if config.Context["shift"] != "night" {
		t.Errorf("Context = %v", config.Context)
	}
}

// TestLoadConfigFile_Missing verifies an explicit missing file is an error.
func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfigFile() succeeded for a missing file")
	}
}

// TestConfig_UpdateFromFlags verifies that flags override loaded values.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", LogLevel: "info"}
	config.UpdateFromFlags(true, false, true, "", "debug")

	if !config.Verbose || config.Quiet || !config.NoColor {
		t.Errorf("flags not applied: %+v", config)
	}
	if config.Format != "yaml" {
		t.Errorf("empty format flag replaced Format: %s", config.Format)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", config.LogLevel)
	}
}
