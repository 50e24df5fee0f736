package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"queuectl/ui/server"
)

func newUICommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve a web UI for watching the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Printf("web server listening on %v\n", addr)
			return server.New(st, st.Registry()).Serve(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:12345", "HTTP bind address")
	return cmd
}
