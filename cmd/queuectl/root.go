package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"queuectl/sqlite"
)

var dbPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Manage a durable shell-command job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := os.Getenv("QUEUECTL_DB")
	if def == "" {
		def = "queue.db"
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", def, "path to the queue database file")

	cmd.AddCommand(
		newEnqueueCommand(),
		newStatusCommand(),
		newListCommand(),
		newWorkerCommand(),
		newDLQCommand(),
		newConfigCommand(),
		newUICommand(),
	)
	return cmd
}

// openStore opens the shared database file and makes sure the schema
// exists. The caller is responsible for closing the store.
func openStore(ctx context.Context) (*sqlite.Store, error) {
	st, err := sqlite.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Start(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
