// Package config loads the sync engine's own configuration document:
// status/priority/assignee mappings, conflict strategy, and sync knobs.
// Credentials for the remote adapter are read separately, from the
// environment, since they are secrets rather than project config (see
// Credentials).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jra3/tasksync/internal/model"
)

// Config is the root configuration document (spec.md §3 "Config
// Document").
type Config struct {
	StatusMapping       map[string][]string          `yaml:"status_mapping"`
	StatusOverrides     map[string]map[string][]string `yaml:"status_overrides"` // projectKey -> statusMapping
	PriorityMapping     map[string][]string          `yaml:"priority_mapping"`
	PriorityOverrides   map[string]map[string][]string `yaml:"priority_overrides"`
	AssigneeMapping     map[string]string             `yaml:"assignee_mapping"`
	AutoMappedAssignees map[string]string             `yaml:"auto_mapped_assignees"`
	ConflictStrategy    string                        `yaml:"conflict_strategy"`
	JQLFilter           string                        `yaml:"jql_filter"`
	ProjectKey          string                        `yaml:"project_key"`
	IssueType           string                        `yaml:"issue_type"`

	Sync SyncConfig `yaml:"sync"`
	Log  LogConfig  `yaml:"log"`
}

// SyncConfig holds the knobs governing reconciliation and the watcher.
type SyncConfig struct {
	Interval         time.Duration `yaml:"interval"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
}

// LogConfig controls the engine's own log verbosity, mirroring the way
// the owning local CLI and remote tracker are configured independently.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// defaultTransitionVerbs maps a canonical local status family to the
// transition-name substrings tried as a last resort when no transition's
// destination status name matches directly (spec.md §4.6.1 step 3c).
var defaultTransitionVerbs = map[string][]string{
	"done":        {"resolve", "close", "complete", "finish"},
	"in-progress": {"start progress", "start", "begin"},
	"cancelled":   {"cancel", "decline", "wontfix"},
}

// DefaultConfig returns the configuration used when no file and no
// environment override is present.
func DefaultConfig() *Config {
	return &Config{
		StatusMapping: map[string][]string{
			"todo":        {"Todo", "To Do", "Backlog"},
			"in-progress": {"In Progress"},
			"done":        {"Done", "Closed"},
		},
		PriorityMapping: map[string][]string{
			"high":   {"High", "Urgent"},
			"medium": {"Medium"},
			"low":    {"Low"},
		},
		AssigneeMapping:     map[string]string{},
		AutoMappedAssignees: map[string]string{},
		ConflictStrategy:    string(model.StrategyPrompt),
		Sync: SyncConfig{
			Interval:         2 * time.Minute,
			BatchConcurrency: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadFrom(getConfigPathWithEnv(os.Getenv), os.Getenv)
}

// LoadFrom loads configuration from an explicit path, falling back to
// the environment-derived default path when path is empty. Environment
// variables always override file values where both are relevant to the
// same setting (there are none at present; credentials are loaded
// separately via Credentials).
func LoadFrom(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = getConfigPathWithEnv(getenv)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if cfg.Sync.BatchConcurrency <= 0 {
		cfg.Sync.BatchConcurrency = 10
	}
	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = 2 * time.Minute
	}

	return cfg, nil
}

// Save writes the configuration back to path as YAML, creating parent
// directories as needed. Used by the conflict UI's preference
// persistence (spec.md §4.7) and by `map-assignees promote`.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = getConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// AcceptableStatuses returns the ordered list of remote status names
// that satisfy canonical local status `status`, honoring a per-project
// override when one is configured for projectKey (spec.md §4.6.1 step 2).
func (c *Config) AcceptableStatuses(status, projectKey string) []string {
	if projectKey != "" {
		if overrides, ok := c.StatusOverrides[projectKey]; ok {
			if list, ok := overrides[status]; ok {
				return list
			}
		}
	}
	return c.StatusMapping[status]
}

// AcceptablePriorities returns the ordered list of remote priority
// names that satisfy canonical local priority `priority`, honoring a
// per-project override.
func (c *Config) AcceptablePriorities(priority, projectKey string) []string {
	if projectKey != "" {
		if overrides, ok := c.PriorityOverrides[projectKey]; ok {
			if list, ok := overrides[priority]; ok {
				return list
			}
		}
	}
	return c.PriorityMapping[priority]
}

// TransitionVerbs returns the configured verb substrings used for the
// fallback transition-name match (spec.md §4.6.1 step 3c).
func (c *Config) TransitionVerbs(status string) []string {
	return defaultTransitionVerbs[status]
}

// ResolveAssignee looks up the remote identifier for a local user,
// preferring an explicit mapping over an auto-discovered one (spec.md
// §4.8, invariant 8: "explicit shadows auto").
func (c *Config) ResolveAssignee(localUser string) (string, bool) {
	if v, ok := c.AssigneeMapping[localUser]; ok {
		return v, true
	}
	v, ok := c.AutoMappedAssignees[localUser]
	return v, ok
}

// ReverseResolveAssignee looks up the local user identifier for a
// remote assignee id, preferring an explicit mapping over an
// auto-discovered one when both happen to point at the same remote id
// (spec.md §4.8, pull direction).
func (c *Config) ReverseResolveAssignee(remoteUser string) (string, bool) {
	for local, remote := range c.AssigneeMapping {
		if remote == remoteUser {
			return local, true
		}
	}
	for local, remote := range c.AutoMappedAssignees {
		if remote == remoteUser {
			return local, true
		}
	}
	return "", false
}

// PutAutoMappedAssignee persists a discovered (not explicit) assignee
// mapping. It never overwrites an explicit mapping.
func (c *Config) PutAutoMappedAssignee(localUser, remoteUser string) {
	if _, ok := c.AssigneeMapping[localUser]; ok {
		return
	}
	if c.AutoMappedAssignees == nil {
		c.AutoMappedAssignees = map[string]string{}
	}
	c.AutoMappedAssignees[localUser] = remoteUser
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tasksync", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasksync", "config.yaml")
}
