package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"queuectl"
)

func newWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}
	cmd.AddCommand(
		newWorkerRunCommand(),
		newWorkerStartCommand(),
		newWorkerStopCommand(),
	)
	return cmd
}

// newWorkerRunCommand runs a single worker in the current process until
// it receives SIGTERM or SIGINT. The supervisor spawns this command for
// every pool slot.
func newWorkerRunCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single worker in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			w := queuectl.NewWorker(st,
				queuectl.SetRegistry(st.Registry()),
				queuectl.SetRunner(&queuectl.ShellRunner{Timeout: timeout}),
			)
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", queuectl.DefaultExecTimeout, "wall-clock limit per command execution")
	return cmd
}

func newWorkerStartCommand() *cobra.Command {
	var (
		count  int
		detach bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pool of worker processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			workerArgs := []string{"worker", "run", "--db", dbPath}

			if detach {
				for i := 0; i < count; i++ {
					c := exec.Command(exe, workerArgs...)
					c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
					if err := c.Start(); err != nil {
						return err
					}
					fmt.Printf("started worker pid %d\n", c.Process.Pid)
					c.Process.Release()
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			s := queuectl.NewSupervisor(queuectl.CommandSpawner(exe, workerArgs...), count)
			return s.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of workers to keep running")
	cmd.Flags().BoolVar(&detach, "detach", false, "start workers detached and exit, without supervision")
	return cmd
}

func newWorkerStopCommand() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop all registered worker processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			remaining, err := queuectl.StopAll(ctx, st.Registry(), grace, nil)
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				fmt.Println("all workers stopped")
				return nil
			}
			for _, info := range remaining {
				fmt.Printf("worker pid %d still running after %v\n", info.PID, grace)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "how long to wait for workers to finish their current job")
	return cmd
}
