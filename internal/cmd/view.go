package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jra3/tasksync/internal/model"
)

var viewCmd = &cobra.Command{
	Use:   "view <local-id>",
	Short: "Show a single mapping's full local/remote detail and state",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	localID := args[0]
	mapping, ok, err := a.Store.GetMapping(localID)
	if err != nil {
		return fmt.Errorf("look up mapping for %s: %w", localID, err)
	}
	if !ok {
		return fmt.Errorf("no mapping for local task %s", localID)
	}

	entries := a.Reconciler.Status(ctx, []model.Mapping{*mapping})
	e := entries[0]
	if e.Err != nil {
		return fmt.Errorf("classify %s <-> %s: %w", mapping.LocalID, mapping.RemoteKey, e.Err)
	}

	fmt.Printf("%s <-> %s  [%s]\n", mapping.LocalID, mapping.RemoteKey, e.State)
	fmt.Printf("mapped %s, updated %s\n\n", humanize.Time(mapping.CreatedAt), humanize.Time(mapping.UpdatedAt))

	fmt.Println("local:")
	printField("title", e.Task.Title)
	printField("status", e.Task.Status)
	printField("priority", e.Task.Priority)
	printField("assignee", e.Task.Assignee)
	printField("labels", strings.Join(e.Task.Labels, ", "))
	printField("description", e.Task.Description)

	fmt.Println("\nremote:")
	printField("summary", e.Issue.Summary)
	printField("status", e.Issue.Status)
	printField("priority", e.Issue.Priority)
	printField("assignee", e.Issue.Assignee)
	printField("labels", strings.Join(e.Issue.Labels, ", "))
	printField("description", e.Issue.Description)
	printField("url", e.Issue.URL)

	return nil
}

func printField(name, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %-12s %s\n", name+":", value)
}
