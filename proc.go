package queuectl

import (
	"context"
	"os"
	"os/exec"
)

// CommandSpawner returns a Spawner that starts name with args as a
// child process, inheriting the parent's environment and standard
// output streams. The spawner does not tie the child to the context:
// the Supervisor terminates workers with SIGTERM so they can finish
// their in-flight job, which a context kill (SIGKILL) would not allow.
func CommandSpawner(name string, args ...string) Spawner {
	return func(ctx context.Context) (Process, error) {
		cmd := exec.Command(name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		p := &osProcess{cmd: cmd, done: make(chan struct{})}
		go p.reap()
		return p, nil
	}
}

// osProcess adapts an exec.Cmd to the Process interface. A background
// goroutine reaps the child as soon as it exits so that Running can
// answer without blocking and zombies are collected promptly.
type osProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // valid once done is closed
}

func (p *osProcess) reap() {
	p.err = p.cmd.Wait()
	close(p.done)
}

// PID returns the child's process id.
func (p *osProcess) PID() int { return p.cmd.Process.Pid }

// Running reports whether the child has not exited yet.
func (p *osProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Signal delivers sig to the child.
func (p *osProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the child has exited and returns its exit error,
// if any.
func (p *osProcess) Wait() error {
	<-p.done
	return p.err
}
