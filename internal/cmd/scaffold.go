package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// init, configure, connect, and doctor are pass-through scaffolding
// (spec.md §6): thin wrappers around setup the operator is expected to
// do once per workspace, out of the engine's core reconciliation scope.

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace directory and a default config file",
	RunE:  runInit,
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Print the resolved configuration document",
	RunE:  runConfigure,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Test the remote adapter's connection and credentials",
	RunE:  runConnect,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local task CLI, remote credentials, and workspace are all reachable",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(initCmd, configureCmd, connectCmd, doctorCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	workspace, _ := cmd.Flags().GetString("workspace")
	if workspace == "" {
		workspace = defaultWorkspaceDir()
	}
	st, err := openStoreOnly(workspace)
	if err != nil {
		return fmt.Errorf("create workspace at %s: %w", workspace, err)
	}
	defer st.Close()

	configPath, _ := cmd.Flags().GetString("config")
	if err := writeDefaultConfigIfAbsent(configPath); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	fmt.Printf("initialized workspace at %s\n", workspace)
	return nil
}

func runConfigure(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfigOnly(configPath)
	if err != nil {
		return err
	}
	return printConfig(cfg)
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Println("connected: remote adapter handshake succeeded")
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return fmt.Errorf("doctor: %w", err)
	}
	defer a.Close()

	if _, err := a.Local.ListTasks(ctx, emptyFilter()); err != nil {
		return fmt.Errorf("doctor: local task CLI unreachable: %w", err)
	}
	fmt.Println("local task CLI: ok")
	fmt.Println("remote adapter: ok")
	fmt.Println("workspace: ok")
	if summary := a.Remote.Stats().Summary(); summary != "" {
		fmt.Printf("remote call stats: %s (%d in the last hour)\n", summary, a.Remote.Stats().HourlyCount())
	}
	return nil
}
