package hub4com

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// stopGrace is the default grace period Stop allows before killing.
	stopGrace = 3 * time.Second

	// tailLines is how much recent output an ExitEvent carries.
	tailLines = 20
)

// ExitEvent reports how a hub4com process ended.
type ExitEvent struct {
	// Code is the exit status, or -1 when the process died without one.
	Code int

	// Err is set when waiting on the process failed outright.
	Err error

	// Stopped is true when the exit was requested through Stop.
	Stopped bool

	// Tail holds the last output lines, for diagnosing early exits.
	Tail []string
}

type procState struct {
	cmd     *exec.Cmd
	stopped bool
	exited  bool
	tail    []string
}

// Process supervises one hub4com run. A Process launches once; create a new
// one for every launch.
type Process struct {
	exe  string
	args []string
	log  *logrus.Logger

	// Grace is how long Stop waits for a graceful exit before killing.
	Grace time.Duration

	statusCh chan procState
	outputCh chan string
	exitCh   chan ExitEvent
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewProcess will prepare a hub4com run with the given argument list,
// typically the output of BuildArgs.
func NewProcess(exe string, args []string, log *logrus.Logger) *Process {
	p := &Process{
		exe:      exe,
		args:     args,
		log:      log,
		Grace:    stopGrace,
		statusCh: make(chan procState, 1),
		outputCh: make(chan string, 64),
		exitCh:   make(chan ExitEvent, 1),
		done:     make(chan struct{}),
	}
	p.statusCh <- procState{}
	return p
}

func (p *Process) updateState(fn func(*procState)) procState {
	st := <-p.statusCh
	fn(&st)
	p.statusCh <- st
	return st
}

// CommandLine will return the full command this process runs, for display.
func (p *Process) CommandLine() string {
	return CommandLine(p.exe, p.args)
}

// Start will launch hub4com. Output() then streams its merged stdout and
// stderr until the process exits, and Exit() delivers one ExitEvent.
// Cancelling ctx kills the process.
func (p *Process) Start(ctx context.Context) error {
	st := <-p.statusCh
	defer func() { p.statusCh <- st }()
	if st.cmd != nil {
		return errors.New("hub4com already started")
	}

	cmd := exec.CommandContext(ctx, p.exe, p.args...)
	hideWindow(cmd)

	// hub4com interleaves progress and errors across stdout and stderr; a
	// single pipe keeps the lines in order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	p.log.Infof("starting hub4com: %s", p.CommandLine())
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w at %s", ErrExeMissing, p.exe)
		}
		return fmt.Errorf("start hub4com: %w", err)
	}
	pw.Close() // the child holds the write end now

	st.cmd = cmd
	p.log.Infof("hub4com running (pid %d)", cmd.Process.Pid)

	outDone := make(chan struct{})
	p.wg.Add(2)
	go p.pump(pr, outDone)
	go p.wait(cmd, outDone)
	return nil
}

// pump forwards process output to the channel and keeps the tail current.
func (p *Process) pump(r io.ReadCloser, outDone chan struct{}) {
	defer p.wg.Done()
	defer close(outDone)
	defer close(p.outputCh)
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		p.updateState(func(st *procState) {
			st.tail = append(st.tail, line)
			if len(st.tail) > tailLines {
				st.tail = st.tail[len(st.tail)-tailLines:]
			}
		})
		p.outputCh <- line
	}
}

func (p *Process) wait(cmd *exec.Cmd, outDone <-chan struct{}) {
	defer p.wg.Done()
	waitErr := cmd.Wait()

	// Let the pump drain the pipe so the tail is complete and exit events
	// land after the output they explain.
	<-outDone

	st := p.updateState(func(st *procState) { st.exited = true })

	ev := ExitEvent{Stopped: st.stopped, Tail: st.tail}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			ev.Code = exitErr.ExitCode()
		} else {
			ev.Code = -1
			ev.Err = waitErr
		}
	}

	switch {
	case ev.Stopped:
		p.log.Infof("hub4com stopped (exit status %d)", ev.Code)
	case ev.Code != 0 || ev.Err != nil:
		p.log.Errorf("hub4com exited with status %d", ev.Code)
	default:
		p.log.Infof("hub4com exited normally")
	}

	close(p.done)
	p.exitCh <- ev
}

// Output streams the process's merged stdout and stderr line by line. The
// channel must be drained; it is closed when the process exits.
func (p *Process) Output() <-chan string { return p.outputCh }

// Exit delivers exactly one event when the process ends.
func (p *Process) Exit() <-chan ExitEvent { return p.exitCh }

// Stop will end a running hub4com, asking it to close first and killing it
// after a grace period. Stopping a process that already exited is a no-op.
func (p *Process) Stop() error {
	st := <-p.statusCh
	if st.cmd == nil || st.exited {
		p.statusCh <- st
		return nil
	}
	st.stopped = true
	cmd := st.cmd
	p.statusCh <- st

	p.log.Infof("stopping hub4com (pid %d)", cmd.Process.Pid)
	if err := terminate(cmd); err != nil {
		p.log.Debugf("graceful terminate: %v", err)
	}

	select {
	case <-p.done:
	case <-time.After(p.Grace):
		p.log.Warnf("hub4com still running after %s, killing", p.Grace)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill hub4com: %w", err)
		}
		<-p.done
	}
	p.wg.Wait()
	return nil
}

// Running will report whether the process has started and not yet exited.
func (p *Process) Running() bool {
	st := <-p.statusCh
	p.statusCh <- st
	return st.cmd != nil && !st.exited
}

// Pid returns the process id, or 0 when the process is not running.
func (p *Process) Pid() int {
	st := <-p.statusCh
	p.statusCh <- st
	if st.cmd == nil || st.exited {
		return 0
	}
	return st.cmd.Process.Pid
}
