package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jra3/tasksync/internal/config"
)

var mapAssigneesCmd = &cobra.Command{
	Use:   "map-assignees",
	Short: "Manage local-user to remote-assignee mappings",
}

var mapAssigneesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List explicit and auto-discovered assignee mappings",
	RunE:  runMapAssigneesShow,
}

var mapAssigneesAddCmd = &cobra.Command{
	Use:   "add <local-user> <remote-account-id>",
	Short: "Add an explicit assignee mapping",
	Args:  cobra.ExactArgs(2),
	RunE:  runMapAssigneesAdd,
}

var mapAssigneesRemoveCmd = &cobra.Command{
	Use:   "remove <local-user>",
	Short: "Remove an explicit assignee mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runMapAssigneesRemove,
}

var mapAssigneesPromoteCmd = &cobra.Command{
	Use:   "promote <local-user>",
	Short: "Promote an auto-discovered assignee mapping to explicit",
	Args:  cobra.ExactArgs(1),
	RunE:  runMapAssigneesPromote,
}

var mapAssigneesInteractiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run assignee auto-discovery against the remote user directory",
	RunE:  runMapAssigneesInteractive,
}

func init() {
	rootCmd.AddCommand(mapAssigneesCmd)
	mapAssigneesCmd.AddCommand(mapAssigneesShowCmd, mapAssigneesAddCmd, mapAssigneesRemoveCmd, mapAssigneesPromoteCmd, mapAssigneesInteractiveCmd)
}

func runMapAssigneesShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("explicit:")
	printSortedMapping(a.Cfg.AssigneeMapping)
	fmt.Println("auto-discovered:")
	printSortedMapping(a.Cfg.AutoMappedAssignees)
	return nil
}

func printSortedMapping(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s -> %s\n", k, m[k])
	}
}

func runMapAssigneesAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Cfg.AssigneeMapping == nil {
		a.Cfg.AssigneeMapping = map[string]string{}
	}
	a.Cfg.AssigneeMapping[args[0]] = args[1]
	if err := config.Save(a.Cfg, a.ConfigPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("added %s -> %s\n", args[0], args[1])
	return nil
}

func runMapAssigneesRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.Cfg.AssigneeMapping[args[0]]; !ok {
		return fmt.Errorf("no explicit mapping for %s", args[0])
	}
	delete(a.Cfg.AssigneeMapping, args[0])
	if err := config.Save(a.Cfg, a.ConfigPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("removed explicit mapping for %s\n", args[0])
	return nil
}

func runMapAssigneesPromote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	remoteID, ok := a.Cfg.AutoMappedAssignees[args[0]]
	if !ok {
		return fmt.Errorf("no auto-discovered mapping for %s", args[0])
	}
	if a.Cfg.AssigneeMapping == nil {
		a.Cfg.AssigneeMapping = map[string]string{}
	}
	a.Cfg.AssigneeMapping[args[0]] = remoteID
	delete(a.Cfg.AutoMappedAssignees, args[0])
	if err := config.Save(a.Cfg, a.ConfigPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("promoted %s -> %s to explicit\n", args[0], remoteID)
	return nil
}

func runMapAssigneesInteractive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.Remote.SearchUsers(ctx, "")
	if err != nil {
		return fmt.Errorf("search remote users: %w", err)
	}
	if err := a.Mapper.DiscoverAssignees(ctx, users); err != nil {
		return fmt.Errorf("discover assignees: %w", err)
	}
	if err := config.Save(a.Cfg, a.ConfigPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("auto-discovered %d assignee mapping(s)\n", len(a.Cfg.AutoMappedAssignees))
	return nil
}
