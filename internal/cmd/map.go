package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jra3/tasksync/internal/mapper"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Establish new mappings between local tasks and remote issues",
}

var mapAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Bind unmapped tasks to their best-scoring remote candidate",
	RunE:  runMapAuto,
}

var mapInteractiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Walk unmapped tasks, picking a candidate for each",
	RunE:  runMapInteractive,
}

var mapLinkCmd = &cobra.Command{
	Use:   "link <local-id> <remote-key>",
	Short: "Explicitly bind one local task to one remote issue",
	Args:  cobra.ExactArgs(2),
	RunE:  runMapLink,
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.AddCommand(mapAutoCmd, mapInteractiveCmd, mapLinkCmd)

	mapAutoCmd.Flags().Float64("min-score", 0, "minimum title-similarity score to bind (default: mapper.DefaultMinScore)")
	mapAutoCmd.Flags().Bool("dry-run", false, "report what would be bound without writing mappings")

	mapLinkCmd.Flags().Bool("force", false, "overwrite an existing mapping on either side")
	mapLinkCmd.Flags().Bool("dry-run", false, "report what would be bound without writing the mapping")
}

func runMapAuto(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	minScore, _ := cmd.Flags().GetFloat64("min-score")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if dryRun {
		fmt.Println("dry-run: mapAuto would bind unmapped tasks scoring at or above", scoreOrDefault(minScore))
		return nil
	}

	result, err := a.Mapper.MapAuto(ctx, minScore)
	if err != nil {
		return fmt.Errorf("map auto: %w", err)
	}
	fmt.Printf("bound %d mapping(s), skipped %d task(s)\n", len(result.Bound), len(result.Skipped))
	for _, m := range result.Bound {
		fmt.Printf("  %s <-> %s\n", m.LocalID, m.RemoteKey)
	}
	return nil
}

func scoreOrDefault(minScore float64) float64 {
	if minScore <= 0 {
		return mapper.DefaultMinScore
	}
	return minScore
}

func runMapInteractive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt := newStdinPrompter()
	result, err := a.Mapper.MapInteractive(ctx, prompt)
	if err != nil {
		return fmt.Errorf("map interactive: %w", err)
	}
	fmt.Printf("bound %d mapping(s), skipped %d task(s)\n", len(result.Bound), len(result.Skipped))
	return nil
}

func runMapLink(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	localID, remoteKey := args[0], args[1]

	task, err := a.Local.GetTask(ctx, localID)
	if err != nil {
		return fmt.Errorf("load local task %s: %w", localID, err)
	}
	issue, err := a.Remote.GetIssue(ctx, remoteKey)
	if err != nil {
		return fmt.Errorf("load remote issue %s: %w", remoteKey, err)
	}

	if dryRun {
		fmt.Printf("dry-run: would link %s <-> %s\n", localID, remoteKey)
		return nil
	}

	mapping, err := a.Mapper.MapLink(ctx, task, issue, force)
	if err != nil {
		return fmt.Errorf("map link: %w", err)
	}
	fmt.Printf("linked %s <-> %s\n", mapping.LocalID, mapping.RemoteKey)
	return nil
}
