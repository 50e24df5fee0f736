// Command queuectl manages a durable shell-command job queue backed by
// a SQLite database that enqueuers and worker processes share.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
