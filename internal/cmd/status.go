package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every mapping's classified sync state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("state", "", "only show mappings in this state: InSync, NeedsPush, NeedsPull, Conflict, Unknown")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	filterState, _ := cmd.Flags().GetString("state")

	mappings, err := a.Store.ListMappings()
	if err != nil {
		return fmt.Errorf("list mappings: %w", err)
	}
	if len(mappings) == 0 {
		fmt.Println("no mappings")
		return nil
	}

	entries := a.Reconciler.Status(ctx, mappings)
	var failures int
	for _, e := range entries {
		if e.Err != nil {
			failures++
			fmt.Printf("  ERROR %s <-> %s: %v\n", e.Mapping.LocalID, e.Mapping.RemoteKey, e.Err)
			continue
		}
		if filterState != "" && string(e.State) != filterState {
			continue
		}
		fmt.Printf("  %-10s %s <-> %s  %q\n", e.State, e.Mapping.LocalID, e.Mapping.RemoteKey, e.Task.Title)
	}
	if failures > 0 {
		return fmt.Errorf("%d mapping(s) failed to classify", failures)
	}
	if summary := a.Remote.Stats().Summary(); summary != "" {
		fmt.Printf("remote calls: %s (%d in the last hour)\n", summary, a.Remote.Stats().HourlyCount())
	}
	return nil
}
