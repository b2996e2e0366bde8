package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jra3/tasksync/internal/config"
	"github.com/jra3/tasksync/internal/conflictui"
	"github.com/jra3/tasksync/internal/localtask"
	"github.com/jra3/tasksync/internal/logging"
	"github.com/jra3/tasksync/internal/mapper"
	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/reconcile"
	"github.com/jra3/tasksync/internal/remote"
	"github.com/jra3/tasksync/internal/searchcache"
	"github.com/jra3/tasksync/internal/store"
)

// app bundles the collaborators every subcommand needs, built once from
// the persistent flags and environment (spec.md §6). Subcommands close
// over *app rather than reaching for package globals.
type app struct {
	Cfg         *config.Config
	ConfigPath  string
	Local       *localtask.Adapter
	Remote      *remote.Adapter
	Store       *store.Store
	Mapper      *mapper.Mapper
	Reconciler  *reconcile.Reconciler
	Log         *logging.Logger
	SearchCache *searchcache.Cache
}

// newApp loads config and credentials, wires every collaborator the
// way root.go's persistent flags describe, and connects the remote
// adapter. Callers must Close it.
func newApp(cmd *cobra.Command, ctx context.Context) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	level := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if debug {
		level = logging.LevelDebug
	}
	log := logging.New("cmd", level)

	cfg, err := config.LoadFrom(configPath, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	creds, err := config.LoadCredentials(os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	workspace, _ := cmd.Flags().GetString("workspace")
	if workspace == "" {
		workspace = defaultWorkspaceDir()
	}
	st, err := store.Open(workspace)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", workspace, err)
	}

	taskBinary, _ := cmd.Flags().GetString("task-binary")
	local := localtask.New(taskBinary)

	remoteOpts := remote.DefaultOptions()
	if v, _ := cmd.Flags().GetString("remote-command"); v != "" {
		remoteOpts.Command = v
	}
	if v, _ := cmd.Flags().GetString("remote-docker-command"); v != "" {
		remoteOpts.DockerCommand = v
	}
	remoteOpts.Silent = !debug
	rem := remote.New(creds, remoteOpts)

	mp := mapper.New(func(ctx context.Context) ([]model.Task, error) {
		return local.ListTasks(ctx, localtask.Filter{})
	}, rem, st, cfg)

	var sc *searchcache.Cache
	if c, err := searchcache.Open(filepath.Join(workspace, "searchcache.db")); err != nil {
		log.Warnf("search cache disabled: %v", err)
	} else {
		sc = c
		mp.SetSearchCache(sc, searchcache.DefaultTTL)
	}

	rec := &reconcile.Reconciler{
		Local:  local,
		Remote: rem,
		Store:  st,
		Cfg:    cfg,
		Mapper: mp,
	}
	if conflictui.IsInteractive() && cfg.ConflictStrategy == string(model.StrategyPrompt) {
		rec.Resolver = conflictui.New(cfg, configPath)
	}

	if err := rem.Connect(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("connect remote adapter: %w", err)
	}

	return &app{
		Cfg:         cfg,
		ConfigPath:  configPath,
		Local:       local,
		Remote:      rem,
		Store:       st,
		Mapper:      mp,
		Reconciler:  rec,
		Log:         log,
		SearchCache: sc,
	}, nil
}

func (a *app) Close() {
	a.Mapper.Close()
	a.Store.Close()
	a.Remote.Close()
	if a.SearchCache != nil {
		a.SearchCache.Close()
	}
}

func defaultWorkspaceDir() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, ".tasksync")
	}
	return ".tasksync"
}

// openStoreOnly opens the workspace directory layout without wiring the
// rest of the app's collaborators, for `init`.
func openStoreOnly(workspace string) (*store.Store, error) {
	return store.Open(workspace)
}

// loadConfigOnly loads config without credentials or the remote
// adapter, for `configure` (spec.md §6 "configure" is a pass-through
// scaffolding command, not a reconciliation entry point).
func loadConfigOnly(configPath string) (*config.Config, error) {
	return config.LoadFrom(configPath, os.Getenv)
}

// writeDefaultConfigIfAbsent writes config.DefaultConfig() to path
// unless a config file already exists there, so `init` never clobbers
// an existing project configuration.
func writeDefaultConfigIfAbsent(path string) error {
	cfg, err := config.LoadFrom(path, os.Getenv)
	if err != nil {
		return err
	}
	resolvedPath := path
	if resolvedPath == "" {
		resolvedPath = configDefaultPath()
	}
	if _, err := os.Stat(resolvedPath); err == nil {
		return nil
	}
	return config.Save(cfg, path)
}

func configDefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tasksync", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasksync", "config.yaml")
}

func printConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func emptyFilter() localtask.Filter {
	return localtask.Filter{}
}
