package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"queuectl"
)

func newEnqueueCommand() *cobra.Command {
	var (
		id         string
		maxRetries int
	)
	cmd := &cobra.Command{
		Use:   "enqueue <command>",
		Short: "Add a shell command to the queue",
		Long: `Add a shell command to the queue.

The argument is either the command itself or a JSON object like
{"command": "sleep 1", "id": "job-1", "max_retries": 5}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := &queuectl.Job{
				ID:         id,
				Command:    args[0],
				MaxRetries: maxRetries,
			}
			if strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
				var req struct {
					ID         string `json:"id"`
					Command    string `json:"command"`
					MaxRetries int    `json:"max_retries"`
				}
				if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
					return fmt.Errorf("invalid job description: %v", err)
				}
				if req.Command == "" {
					return fmt.Errorf("invalid job description: command missing")
				}
				job.Command = req.Command
				if req.ID != "" {
					job.ID = req.ID
				}
				if req.MaxRetries > 0 {
					job.MaxRetries = req.MaxRetries
				}
			}

			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Add(ctx, job); err != nil {
				return err
			}
			fmt.Printf("enqueued job %s\n", job.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "job identifier (default: a random UUID)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "attempts before the job is moved to the dead letter queue (default: the max_retries config value)")
	return cmd
}
