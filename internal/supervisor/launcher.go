package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

type LaunchSpec struct {
	RunID        string
	ManifestPath string
	StatusPath   string
}

// Process is a running worker.
type Process interface {
	// Exited reports whether the worker is gone and, if so, how it ended.
	Exited() (bool, error)
	Kill() error
}

type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// ExecLauncher starts the worker as a separate OS process:
// <Command...> --manifest M --status S [--document D] [ExtraArgs...]
type ExecLauncher struct {
	Command   []string
	Document  string
	ExtraArgs []string
	Dir       string
	Env       []string
	Stdout    io.Writer
	Stderr    io.Writer
}

func (l ExecLauncher) Args(spec LaunchSpec) []string {
	args := append([]string{}, l.Command[1:]...)
	args = append(args, "--manifest", spec.ManifestPath, "--status", spec.StatusPath)
	if l.Document != "" {
		args = append(args, "--document", l.Document)
	}
	return append(args, l.ExtraArgs...)
}

func (l ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if len(l.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	// not CommandContext: the worker outlives the launch call and is only
	// ever stopped through Kill
	cmd := exec.Command(l.Command[0], l.Args(spec)...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = l.Env
	}
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (p *execProcess) Exited() (bool, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return true, p.err
	default:
		return false, nil
	}
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill worker pid %d: %w", p.cmd.Process.Pid, err)
	}
	<-p.done
	return nil
}
