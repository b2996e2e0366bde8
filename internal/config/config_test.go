package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mockEnv creates an environment lookup function from a map.
func mockEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.Sync.Interval != 2*time.Minute {
		t.Errorf("DefaultConfig() Sync.Interval = %v, want %v", cfg.Sync.Interval, 2*time.Minute)
	}
	if cfg.Sync.BatchConcurrency != 10 {
		t.Errorf("DefaultConfig() Sync.BatchConcurrency = %d, want 10", cfg.Sync.BatchConcurrency)
	}
	if cfg.ConflictStrategy != "prompt" {
		t.Errorf("DefaultConfig() ConflictStrategy = %q, want %q", cfg.ConflictStrategy, "prompt")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("DefaultConfig() Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if got := cfg.AcceptableStatuses("done", ""); len(got) == 0 {
		t.Error("DefaultConfig() status_mapping for 'done' should not be empty")
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "tasksync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	configContent := `
project_key: PROJ
issue_type: Task
conflict_strategy: prefer-local
jql_filter: "project = PROJ"
status_mapping:
  todo: ["To Do"]
  done: ["Done", "Closed"]
sync:
  interval: 5m
  batch_concurrency: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFrom(configPath, mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.ProjectKey != "PROJ" {
		t.Errorf("ProjectKey = %q, want PROJ", cfg.ProjectKey)
	}
	if cfg.ConflictStrategy != "prefer-local" {
		t.Errorf("ConflictStrategy = %q, want prefer-local", cfg.ConflictStrategy)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %v, want 5m", cfg.Sync.Interval)
	}
	if cfg.Sync.BatchConcurrency != 4 {
		t.Errorf("Sync.BatchConcurrency = %d, want 4", cfg.Sync.BatchConcurrency)
	}
	got := cfg.AcceptableStatuses("done", "")
	if len(got) != 2 || got[0] != "Done" {
		t.Errorf("AcceptableStatuses(done) = %v", got)
	}
}

func TestLoadNoConfigFileUsesDefaults(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(tmpDir, "missing.yaml"), mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.Sync.BatchConcurrency != 10 {
		t.Errorf("LoadFrom() without file should use default batch concurrency, got %d", cfg.Sync.BatchConcurrency)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	invalid := "project_key: [this is invalid yaml"
	if err := os.WriteFile(configPath, []byte(invalid), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadFrom(configPath, mockEnv(nil)); err == nil {
		t.Error("LoadFrom() with invalid YAML should return error")
	}
}

func TestGetConfigPathXDG(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{"XDG_CONFIG_HOME": "/custom/config/path"})

	path := getConfigPathWithEnv(env)
	expected := filepath.Join("/custom/config/path", "tasksync", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

func TestGetConfigPathFallback(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{})

	path := getConfigPathWithEnv(env)
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "tasksync", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

func TestResolveAssigneeExplicitShadowsAuto(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.AutoMappedAssignees["alice"] = "auto-alice-id"
	cfg.AssigneeMapping["alice"] = "explicit-alice-id"

	got, ok := cfg.ResolveAssignee("alice")
	if !ok || got != "explicit-alice-id" {
		t.Errorf("ResolveAssignee(alice) = (%q, %v), want explicit-alice-id", got, ok)
	}
}

func TestPutAutoMappedAssigneeDoesNotOverwriteExplicit(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.AssigneeMapping["bob"] = "explicit-bob-id"

	cfg.PutAutoMappedAssignee("bob", "auto-bob-id")

	if _, ok := cfg.AutoMappedAssignees["bob"]; ok {
		t.Error("PutAutoMappedAssignee should not add an entry shadowed by an explicit mapping")
	}
	got, _ := cfg.ResolveAssignee("bob")
	if got != "explicit-bob-id" {
		t.Errorf("ResolveAssignee(bob) = %q, want explicit-bob-id", got)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ProjectKey = "ENG"
	cfg.ConflictStrategy = "manual"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadFrom(path, mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if loaded.ProjectKey != "ENG" || loaded.ConflictStrategy != "manual" {
		t.Errorf("round-trip mismatch: %+v", loaded)
	}
}
