package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agentstation/staffmap/pkg/logging"
	"github.com/agentstation/staffmap/pkg/report"
	"github.com/agentstation/staffmap/pkg/validation"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	config.Rules = ""
	config.HistoryDB = ""
	config.Checks = nil
	config.Context = nil
	return config
}

func newTestApp(t *testing.T, config *Config) *App {
	t.Helper()
	app, err := New("1.0.0", "abc123", "2026-01-01", "test", WithConfig(config), WithLogger(logging.NewNopLogger()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", name, err)
	}
	return path
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2026-01-01" {
		t.Errorf("Date() = %s, want 2026-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_Engine_Singleton verifies that Engine() returns the same instance.
func TestApp_Engine_Singleton(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var wg sync.WaitGroup
	engines := make(chan any, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := app.Engine()
			if err != nil {
				t.Errorf("Engine() failed: %v", err)
				return
			}
			engines <- engine
		}()
	}
	wg.Wait()
	close(engines)

	var first any
	for engine := range engines {
		if first == nil {
			first = engine
			continue
		}
		if engine != first {
			t.Error("Engine() returned different instances, expected singleton")
		}
	}
}

// TestApp_Engine_FromConfig verifies that rule files and check overrides reach the engine.
func TestApp_Engine_FromConfig(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t)
	config.Rules = writeFile(t, dir, "rules.yaml", "rules:\n  - supply: [A]\n    demand: [A]\n    strategy: EXACT\n")
	threshold := 0.5
	config.Checks = map[string]CheckConfig{validation.MappingCompleteness: {Threshold: &threshold}}
	app := newTestApp(t, config)

	engine, err := app.Engine()
	if err != nil {
		t.Fatalf("Engine() failed: %v", err)
	}
	if engine.Registry().Len() != 1 {
		t.Errorf("Registry().Len() = %d, want 1", engine.Registry().Len())
	}

	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"A": 10, "B": 10}, map[string]float64{"A": 10})
	if err != nil {
		t.Fatalf("ReconcileMaps() failed: %v", err)
	}
	check := r.Validation.Checks[validation.MappingCompleteness]
	if check.Threshold != 0.5 {
		t.Errorf("mapping_completeness threshold = %v, want 0.5", check.Threshold)
	}
	if !check.Passed {
		t.Errorf("mapping_completeness score %v should pass a 0.5 threshold", check.Score)
	}
}

// TestApp_Engine_BadCheck verifies that an unknown check name fails engine construction.
func TestApp_Engine_BadCheck(t *testing.T) {
	config := testConfig(t)
	weight := 0.2
	config.Checks = map[string]CheckConfig{"speed": {Weight: &weight}}
	app := newTestApp(t, config)

	if _, err := app.Engine(); err == nil {
		t.Error("Engine() succeeded with an unknown check")
	}
}

// TestApp_History verifies lazy opening of the history database.
func TestApp_History(t *testing.T) {
	config := testConfig(t)
	app := newTestApp(t, config)

	history, err := app.History()
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if history != nil {
		t.Error("History() without history_db should be nil")
	}

	config.HistoryDB = filepath.Join(t.TempDir(), "runs.db")
	first, err := app.History()
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	second, err := app.History()
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if first != second {
		t.Error("History() opened the database twice")
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

// TestApp_Execute_Reconcile runs the CLI end to end and records history.
func TestApp_Execute_Reconcile(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t)
	config.HistoryDB = filepath.Join(dir, "runs.db")
	app := newTestApp(t, config)

	rules := writeFile(t, dir, "rules.yaml", "rules:\n  - id: a\n    supply: [A]\n    demand: [A]\n    strategy: EXACT\n")
	supply := writeFile(t, dir, "supply.yaml", "hours:\n  A: 100\n  B: 50\n")
	demand := writeFile(t, dir, "demand.json", `{"hours": {"A": 80, "C": 20}}`)
	out := filepath.Join(dir, "out", "report.json")

	err := app.Execute(context.Background(), []string{
		"reconcile", "--rules", rules, "--supply", supply, "--demand", demand, "--out", out, "-o", "json", "-q",
	})
	if err != nil {
		t.Fatalf("Execute(reconcile) failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	r, err := report.Parse(data, report.FormatJSON)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if r.Mapping.MappingAccuracy < 0.6399 || r.Mapping.MappingAccuracy > 0.6401 {
		t.Errorf("mapping accuracy = %v, want 0.64", r.Mapping.MappingAccuracy)
	}
	if r.Metadata.Supply.Source != "supply.yaml" {
		t.Errorf("supply source = %q, want supply.yaml", r.Metadata.Supply.Source)
	}

	history, err := app.History()
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	entries, err := history.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != r.Metadata.RunID {
		t.Errorf("history = %+v, want the run %s", entries, r.Metadata.RunID)
	}
}

// TestApp_Execute_Version verifies the version command runs.
func TestApp_Execute_Version(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	if err := app.Execute(context.Background(), []string{"version"}); err != nil {
		t.Errorf("Execute(version) failed: %v", err)
	}
}

// TestApp_Engine_ConfigContext verifies contextual rules match context keys
// read from a config file, whatever their case.
func TestApp_Engine_ConfigContext(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", `rules:
  - id: night-float
    supply: [Float]
    demand: [ICU]
    strategy: CONTEXTUAL
    matrix: [[1]]
    confidence: 0.7
    when:
      Shift: night
`)
	path := writeFile(t, dir, "staffmap.yaml", "rules: "+rules+"\ncontext:\n  Shift: night\n")

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}
	app := newTestApp(t, config)

	engine, err := app.Engine()
	if err != nil {
		t.Fatalf("Engine() failed: %v", err)
	}
	r, err := engine.ReconcileMaps(context.Background(), map[string]float64{"Float": 8}, map[string]float64{"ICU": 8})
	if err != nil {
		t.Fatalf("ReconcileMaps() failed: %v", err)
	}
	if len(r.Mapping.Applied) != 1 || r.Mapping.Applied[0] != "night-float" {
		t.Errorf("Applied = %v, want [night-float]", r.Mapping.Applied)
	}
}
