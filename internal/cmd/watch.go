package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jra3/tasksync/internal/model"
	"github.com/jra3/tasksync/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll and reconcile every mapping on a fixed interval",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("interval", 0, "poll interval (default: config's sync.interval, 2m)")
	watchCmd.Flags().Bool("stop-on-error", false, "stop the watcher after the first failing cycle")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cmd, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if model.ConflictStrategy(a.Cfg.ConflictStrategy) == model.StrategyPrompt {
		a.Reconciler.Resolver = nil
		a.Log.Warnf("watch never prompts interactively; conflicts classified Conflict under the prompt strategy will fail until resolved manually")
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = a.Cfg.Sync.Interval
	}
	stopOnError, _ := cmd.Flags().GetBool("stop-on-error")

	w := watcher.New(a.Reconciler, a.Store, watcher.Config{Interval: interval, StopOnError: stopOnError})
	w.OnCycle = func(s watcher.CycleSummary) {
		fmt.Printf("cycle %d (%s): %d synced, %d conflict(s), %d error(s), next in %s\n",
			s.Cycle, humanize.Time(s.Started), s.SyncedCount, s.ConflictCount, s.ErrorCount, s.Backoff)
	}

	fmt.Printf("watching every %s (Ctrl+C to stop)\n", interval)
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()

	cycles, synced, conflicts, errs := w.Totals()
	fmt.Printf("stopped after %d cycle(s): %d synced, %d conflict(s), %d error(s)\n", cycles, synced, conflicts, errs)
	return nil
}
