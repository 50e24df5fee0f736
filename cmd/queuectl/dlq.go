package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"queuectl"
)

func newDLQCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and requeue dead jobs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			jobs, err := st.List(ctx, &queuectl.ListRequest{State: queuectl.StateDead})
			if err != nil {
				return err
			}
			return printJobs(jobs)
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			ok, err := st.Requeue(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("job %s is not in the dead letter queue", args[0])
			}
			fmt.Printf("job %s requeued\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, retryCmd)
	return cmd
}
