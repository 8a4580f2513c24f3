package notebook

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Process is a running notebook tool speaking line-delimited JSON-RPC.
type Process interface {
	// Stdin receives requests, one JSON object per line
	Stdin() io.WriteCloser
	// Stdout yields responses, notifications and arbitrary log noise
	Stdout() io.Reader
	// Kill stops the process and releases its pipes. Safe to call twice.
	Kill() error
}

// Launcher starts one notebook tool process per query.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// ExecLauncher runs the notebook tool as a child process.
type ExecLauncher struct {
	Path string
	Args []string

	// Stderr receives the child's stderr; nil discards it
	Stderr io.Writer
}

// Launch starts the configured executable with piped stdin and stdout.
func (l ExecLauncher) Launch(ctx context.Context) (Process, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("notebook tool path is not configured")
	}

	cmd := exec.Command(l.Path, l.Args...)
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Path, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	once sync.Once
	err  error
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader      { return p.stdout }

func (p *execProcess) Kill() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			p.err = p.cmd.Process.Kill()
		}
		// Wait reaps the child and closes stdout
		_ = p.cmd.Wait()
	})
	return p.err
}
