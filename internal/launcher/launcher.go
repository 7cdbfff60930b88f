// Package launcher starts the recorded development command of a restored
// workspace.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// ErrEmptyCommand is returned for a blank command line.
var ErrEmptyCommand = errors.New("launcher: empty command")

// Process is a started command.
type Process struct {
	Command string
	PID     int

	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status, or -1 while running or when the
// process was killed by a signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
	default:
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Err returns the wait error once the process has exited.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Launcher spawns commands in a working directory.
type Launcher struct {
	dir     string
	logger  *slog.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	running map[int]*Process
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the launcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(la *Launcher) { la.logger = l }
}

// WithMetrics counts launch attempts.
func WithMetrics(m *metric.Registry) Option {
	return func(la *Launcher) { la.metrics = m }
}

// New creates a launcher running commands in dir.
func New(dir string, opts ...Option) *Launcher {
	l := &Launcher{
		dir:     dir,
		logger:  slog.Default(),
		running: make(map[int]*Process),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Split breaks a command line on whitespace. Quotes are not interpreted.
func Split(command string) []string {
	return strings.Fields(command)
}

// Start spawns command without waiting for it. Output is discarded so the
// child never blocks on a full pipe; the exit is logged in the background.
func (l *Launcher) Start(command string) (*Process, error) {
	parts := Split(command)
	if len(parts) == 0 {
		l.metrics.RecordLaunch("failed")
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = l.dir
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		l.metrics.RecordLaunch("failed")
		l.logger.Warn("failed to auto-start command", "command", command, "error", err)
		return nil, fmt.Errorf("launcher: start %q: %w", parts[0], err)
	}

	p := &Process{
		Command: command,
		PID:     cmd.Process.Pid,
		cmd:     cmd,
		done:    make(chan struct{}),
	}

	l.mu.Lock()
	l.running[p.PID] = p
	l.mu.Unlock()

	l.metrics.RecordLaunch("ok")
	l.logger.Info("auto-started command", "command", command, "pid", p.PID, "dir", l.dir)

	go l.wait(p)
	return p, nil
}

func (l *Launcher) wait(p *Process) {
	p.err = p.cmd.Wait()
	close(p.done)

	l.mu.Lock()
	delete(l.running, p.PID)
	l.mu.Unlock()

	l.logger.Info("auto-started command exited",
		"command", p.Command,
		"pid", p.PID,
		"code", p.ExitCode())
}

// Running returns the number of live processes.
func (l *Launcher) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// StopAll kills every live process and waits up to timeout for them to
// exit.
func (l *Launcher) StopAll(timeout time.Duration) {
	l.mu.Lock()
	procs := make([]*Process, 0, len(l.running))
	for _, p := range l.running {
		procs = append(procs, p)
	}
	l.mu.Unlock()

	deadline := time.After(timeout)
	for _, p := range procs {
		if err := p.cmd.Process.Kill(); err != nil {
			l.logger.Debug("kill failed", "pid", p.PID, "error", err)
		}
		select {
		case <-p.done:
		case <-deadline:
			l.logger.Warn("auto-started command did not exit", "pid", p.PID)
			return
		}
	}
}
