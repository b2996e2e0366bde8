package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Bidirectional sync between local tasks and a remote tracker",
	Long:  `tasksync reconciles local markdown task records against issues in a remote issue tracker: fuzzy mapping discovery, a three-way-merge state machine, conflict resolution, and a polling watcher.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: ~/.config/tasksync/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().String("workspace", "", "workspace directory for mappings/snapshots/op-log (default: ./.tasksync)")
	rootCmd.PersistentFlags().String("task-binary", "task", "local task CLI binary to invoke")
	rootCmd.PersistentFlags().String("remote-command", "", "override the remote tool-protocol subprocess command")
	rootCmd.PersistentFlags().String("remote-docker-command", "", "override the docker-transport fallback command")
}
