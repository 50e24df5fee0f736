package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"queuectl"
)

func newListCommand() *cobra.Command {
	var (
		state  string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "" {
				valid := false
				for _, s := range queuectl.States {
					if s == state {
						valid = true
						break
					}
				}
				if !valid {
					return fmt.Errorf("unknown state %q", state)
				}
			}

			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			jobs, err := st.List(ctx, &queuectl.ListRequest{State: state, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printJobs(jobs)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only list jobs in this state")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of jobs to skip")
	return cmd
}

func printJobs(jobs []*queuectl.Job) error {
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCREATED\tCOMMAND")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			job.ID, job.State, job.Attempts, job.MaxRetries,
			job.CreatedAt.Format(time.RFC3339), job.Command)
	}
	return w.Flush()
}
