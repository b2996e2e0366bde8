package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/reconcile"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Apply local changes to the remote side for every mapping",
	RunE:  makeReconcileRun(reconcileModePush),
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Apply remote changes to the local side for every mapping",
	RunE:  makeReconcileRun(reconcileModePull),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bidirectionally reconcile every mapping",
	RunE:  makeReconcileRun(reconcileModeSync),
}

type reconcileMode int

const (
	reconcileModePush reconcileMode = iota
	reconcileModePull
	reconcileModeSync
)

func init() {
	rootCmd.AddCommand(pushCmd, pullCmd, syncCmd)
	for _, c := range []*cobra.Command{pushCmd, pullCmd, syncCmd} {
		c.Flags().Bool("dry-run", false, "report what would change without applying it")
		c.Flags().Bool("force", false, "override needs-push/needs-pull/conflict guards")
		c.Flags().String("strategy", "", "conflict strategy override: prefer-local, prefer-remote, prompt, manual")
	}
}

func makeReconcileRun(mode reconcileMode) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(cmd, ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		strategyFlag, _ := cmd.Flags().GetString("strategy")

		mappings, err := a.Store.ListMappings()
		if err != nil {
			return fmt.Errorf("list mappings: %w", err)
		}
		if len(mappings) == 0 {
			fmt.Println("no mappings to reconcile")
			return nil
		}

		if dryRun {
			fmt.Printf("dry-run: would reconcile %d mapping(s)\n", len(mappings))
			return nil
		}

		opts := reconcile.Options{Force: force, Strategy: model.ConflictStrategy(strategyFlag)}

		var results []reconcile.Result
		switch mode {
		case reconcileModePush:
			results = a.Reconciler.Push(ctx, mappings, opts)
		case reconcileModePull:
			results = a.Reconciler.Pull(ctx, mappings, opts)
		case reconcileModeSync:
			results = a.Reconciler.Sync(ctx, mappings, opts)
		}

		failed := printResults(results)
		if failed > 0 {
			return fmt.Errorf("%d of %d mapping(s) failed", failed, len(results))
		}
		return nil
	}
}

func printResults(results []reconcile.Result) int {
	var failed int
	for _, r := range results {
		if r.Status == model.OpStatusFailed {
			failed++
			fmt.Printf("  FAIL %s <-> %s (%s): %s\n", r.LocalID, r.RemoteKey, r.State, r.Detail)
			continue
		}
		fmt.Printf("  ok   %s <-> %s (%s, %s)\n", r.LocalID, r.RemoteKey, r.State, r.Op)
	}
	return failed
}
