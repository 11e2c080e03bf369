package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/CZERTAINLY/cronwatch/internal/model"
)

var (
	ErrNotStarted = errors.New("command not started")
	ErrInProgress = errors.New("command in progress")
)

// KillDelay is the time a command gets to exit after SIGTERM before it is killed
var KillDelay = 5 * time.Second

// TimeoutExitCode is reported for commands terminated by the timeout
const TimeoutExitCode = -1

type Runner struct {
	mx         sync.Mutex
	cmd        *exec.Cmd
	cancelFunc context.CancelFunc
	result     Result
	waits      []chan Result
}

func NewRunner() *Runner {
	return &Runner{
		result: Result{Err: ErrNotStarted},
	}
}

type Command struct {
	Path    string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Result of a finished command. Output holds combined stdout and stderr
// positioned at the start. Callers must Close the result.
type Result struct {
	Path     string
	Args     []string
	Started  time.Time
	Stopped  time.Time
	State    *os.ProcessState
	ExitCode int
	TimedOut bool
	Output   *os.File
	Err      error
}

// Close releases the captured output
func (r Result) Close() error {
	if r.Output == nil {
		return nil
	}
	return errors.Join(r.Output.Close(), os.Remove(r.Output.Name()))
}

// Start runs the command, only single instance can be active per Runner.
// Returns ErrInProgress or *model.RunError, otherwise nil. Does NOT wait on
// command to finish, use WaitChan method instead.
func (r *Runner) Start(ctx context.Context, proto Command) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return ErrInProgress
	}

	r.result = Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
	}

	output, err := os.CreateTemp("", "cronwatch-*.out")
	if err != nil {
		r.result.Err = fmt.Errorf("creating output file: %w", err)
		return r.result.Err
	}
	r.result.Output = output

	if proto.Timeout == 0 {
		ctx, r.cancelFunc = context.WithCancel(ctx)
	} else {
		ctx, r.cancelFunc = context.WithTimeout(ctx, proto.Timeout)
	}

	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	if proto.Env != nil {
		cmd.Env = append([]string(nil), proto.Env...)
	}
	// nil stdin reads from the null device
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = KillDelay

	r.result.Started = time.Now()
	if err := cmd.Start(); err != nil {
		r.cancelFunc()
		r.cancelFunc = nil
		r.result.Stopped = time.Now()
		r.result.Err = &model.RunError{Path: proto.Path, Err: err}
		_ = r.result.Close()
		r.result.Output = nil
		return r.result.Err
	}
	slog.DebugContext(ctx, "command started", "path", proto.Path, "pid", cmd.Process.Pid)

	r.cmd = cmd
	go r.wait(ctx, cmd, r.cancelFunc)
	return nil
}

func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, cancel context.CancelFunc) {
	err := cmd.Wait()
	ctxErr := ctx.Err()
	cancel()
	stopped := time.Now()

	r.mx.Lock()
	defer r.mx.Unlock()
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	if cmd.ProcessState != nil {
		r.result.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case ctxErr != nil:
		r.result.ExitCode = TimeoutExitCode
		r.result.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		slog.WarnContext(ctx, "command terminated", "path", r.result.Path, "reason", ctxErr)
	case err == nil, errors.As(err, &exitErr):
	default:
		r.result.Err = err
	}

	if r.result.Err == nil {
		if _, err := r.result.Output.Seek(0, io.SeekStart); err != nil {
			r.result.Err = fmt.Errorf("rewinding output: %w", err)
		}
	}

	r.cmd = nil
	r.cancelFunc = nil
	for _, ch := range r.waits {
		ch <- r.result
		close(ch)
	}
	r.waits = nil
}

// WaitChan returns the channel obtaining the result of a running
// program. The channel is closed once program ends. When nothing runs,
// the last result is sent immediately.
func (r *Runner) WaitChan() <-chan Result {
	ch := make(chan Result, 1)
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil {
		ch <- r.result
		close(ch)
		return ch
	}
	r.waits = append(r.waits, ch)
	return ch
}

// LastResult returns a last command result
// or result with ErrNotStarted if no command has been executed yet
func (r *Runner) LastResult() Result {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return Result{Path: r.result.Path, Args: r.result.Args, Started: r.result.Started, Err: ErrInProgress}
	}
	return r.result
}

// Run starts the command and waits for it to finish
func (r *Runner) Run(ctx context.Context, proto Command) (Result, error) {
	if err := r.Start(ctx, proto); err != nil {
		return Result{}, err
	}
	res := <-r.WaitChan()
	if res.Err != nil {
		_ = res.Close()
		return Result{}, res.Err
	}
	return res, nil
}

// Close terminates the running command, if any
func (r *Runner) Close() {
	r.mx.Lock()
	cancel := r.cancelFunc
	r.mx.Unlock()
	if cancel != nil {
		cancel()
	}
}
