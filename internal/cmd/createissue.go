package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var createIssueCmd = &cobra.Command{
	Use:   "create-issue <local-id>",
	Short: "Create a remote issue from an unmapped local task and bind it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateIssue,
}

func init() {
	rootCmd.AddCommand(createIssueCmd)
	createIssueCmd.Flags().String("project", "", "remote project key (default: config's project_key)")
	createIssueCmd.Flags().String("issue-type", "", "remote issue type (default: config's issue_type)")
	createIssueCmd.Flags().Bool("dry-run", false, "report what would be created without creating it")
}

func runCreateIssue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	localID := args[0]
	if _, ok, err := a.Store.GetMapping(localID); err != nil {
		return fmt.Errorf("check existing mapping for %s: %w", localID, err)
	} else if ok {
		return fmt.Errorf("local task %s is already mapped", localID)
	}

	task, err := a.Local.GetTask(ctx, localID)
	if err != nil {
		return fmt.Errorf("load local task %s: %w", localID, err)
	}

	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		project = a.Cfg.ProjectKey
	}
	issueType, _ := cmd.Flags().GetString("issue-type")
	if issueType == "" {
		issueType = a.Cfg.IssueType
	}
	if project == "" || issueType == "" {
		return fmt.Errorf("project and issue type are required (via flags or config's project_key/issue_type)")
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Printf("dry-run: would create %s/%s issue %q and bind it to %s\n", project, issueType, task.Title, localID)
		return nil
	}

	issue, err := a.Remote.CreateIssue(ctx, project, issueType, task.Title, map[string]any{"description": task.Description})
	if err != nil {
		return fmt.Errorf("create remote issue: %w", err)
	}

	mapping, err := a.Mapper.MapLink(ctx, task, issue, false)
	if err != nil {
		return fmt.Errorf("bind new issue: %w", err)
	}
	fmt.Printf("created %s and bound it to %s\n", mapping.RemoteKey, mapping.LocalID)
	return nil
}
