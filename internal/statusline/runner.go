package statusline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/bryanchriswhite/wmipc/internal/logger"
	"golang.org/x/sys/unix"
)

const (
	DefaultShell = "/bin/sh"
	// stopGrace is how long Stop waits after SIGTERM before killing.
	stopGrace = 2 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("statusline: command already running")
	ErrNotRunning     = errors.New("statusline: command not running")
)

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithShell runs the command through shell instead of /bin/sh.
func WithShell(shell string) RunnerOption {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithBuffer sets the capacity of the update channel.
func WithBuffer(n int) RunnerOption {
	return func(r *Runner) { r.buffer = n }
}

// Runner manages a status command subprocess and decodes its stdout.
type Runner struct {
	command string
	shell   string
	buffer  int

	mu      sync.RWMutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	decoder *Decoder
	running bool
	paused  bool
	updates chan Update
	done    chan struct{}
	waitErr error
}

func NewRunner(command string, opts ...RunnerOption) *Runner {
	r := &Runner{
		command: command,
		shell:   DefaultShell,
		buffer:  16,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the command. Updates flow until the command's stdout
// closes or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	log := logger.WithComponent("statusline")

	cmd := exec.Command(r.shell, "-c", r.command)
	// Own process group so signals reach the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start status command: %w", err)
	}

	r.cmd = cmd
	r.stdout = stdout
	r.stderr = stderr
	r.decoder = NewDecoder()
	r.running = true
	r.paused = false
	r.waitErr = nil
	r.updates = make(chan Update, r.buffer)
	r.done = make(chan struct{})

	stderrDone := make(chan struct{})
	go r.logStderr(stderr, stderrDone)
	go r.readUpdates(ctx, cmd, stdout, stderrDone, r.decoder, r.updates, r.done)
	go func(done chan struct{}) {
		select {
		case <-ctx.Done():
			if err := r.Stop(); err != nil {
				log.Warn().Err(err).Msg("Failed to stop status command")
			}
		case <-done:
		}
	}(r.done)

	log.Info().
		Str("command", r.command).
		Int("pid", cmd.Process.Pid).
		Msg("Status command started")

	return nil
}

// Updates returns the channel of decoded statuses. It is closed once the
// command exits.
func (r *Runner) Updates() <-chan Update {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updates
}

// Done is closed after the command has exited and been reaped.
func (r *Runner) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// Err returns the command's exit error once Done is closed.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waitErr
}

// Header returns the detected protocol and, for ProtocolJSON, the header
// the command announced.
func (r *Runner) Header() (Header, Protocol) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.decoder == nil {
		return defaultHeader(), ProtocolUnknown
	}
	return r.decoder.Header(), r.decoder.Protocol()
}

// Pause sends the command its stop signal.
func (r *Runner) Pause() error {
	return r.signal(true)
}

// Resume sends the command its continue signal.
func (r *Runner) Resume() error {
	return r.signal(false)
}

func (r *Runner) signal(stop bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return ErrNotRunning
	}
	if r.paused == stop {
		return nil
	}

	hdr := r.decoder.Header()
	sig := hdr.ContSignal
	if stop {
		sig = hdr.StopSignal
	}
	if err := killGroup(r.cmd.Process.Pid, unix.Signal(sig)); err != nil {
		return err
	}
	r.paused = stop

	logger.WithComponent("statusline").Debug().
		Int("pid", r.cmd.Process.Pid).
		Int("signal", sig).
		Bool("paused", stop).
		Msg("Signalled status command")
	return nil
}

// Stop terminates the command and waits for it to be reaped.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	pid := r.cmd.Process.Pid
	paused := r.paused
	done := r.done
	r.mu.Unlock()

	log := logger.WithComponent("statusline")
	log.Debug().Int("pid", pid).Msg("Stopping status command")

	// ESRCH here means the command already exited on its own.
	if err := killGroup(pid, unix.SIGTERM); err != nil {
		log.Debug().Err(err).Int("pid", pid).Msg("Failed to terminate status command")
	}
	if paused {
		if err := killGroup(pid, unix.SIGCONT); err != nil {
			log.Debug().Err(err).Int("pid", pid).Msg("Failed to resume status command")
		}
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		log.Warn().Int("pid", pid).Msg("Status command ignored SIGTERM, killing")
		if err := killGroup(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		<-done
	}
	return nil
}

// killGroup signals the process group led by pid.
func killGroup(pid int, sig unix.Signal) error {
	if err := unix.Kill(-pid, sig); err != nil {
		return fmt.Errorf("failed to send %v to status command group %d: %w", sig, pid, err)
	}
	return nil
}

func (r *Runner) readUpdates(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderrDone <-chan struct{}, dec *Decoder, out chan<- Update, done chan struct{}) {
	log := logger.WithComponent("statusline")

	defer func() {
		<-stderrDone
		err := cmd.Wait()

		r.mu.Lock()
		r.running = false
		r.waitErr = err
		r.mu.Unlock()

		close(out)
		close(done)

		if err != nil {
			log.Warn().Err(err).Msg("Status command exited")
		} else {
			log.Info().Msg("Status command exited")
		}
	}()

	send := func(updates []Update) bool {
		for _, u := range updates {
			select {
			case out <- u:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			r.mu.Lock()
			updates := dec.Feed(buf[:n])
			r.mu.Unlock()
			if !send(updates) {
				io.Copy(io.Discard, stdout)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Error().Err(err).Msg("Error reading status command output")
			}
			break
		}
	}

	r.mu.Lock()
	updates := dec.Flush()
	r.mu.Unlock()
	send(updates)
}

// logStderr logs the command's stderr line by line
func (r *Runner) logStderr(stderr io.Reader, done chan<- struct{}) {
	defer close(done)
	log := logger.WithComponent("statusline")
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Warn().Str("stderr", scanner.Text()).Msg("Status command message")
	}
}
