package com0com

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPath is where the com0com installer puts setupc.exe.
const DefaultPath = `C:\Program Files (x86)\com0com\setupc.exe`

const (
	defaultTimeout = 10 * time.Second

	// Driver installs load kernel modules and take noticeably longer than
	// list or remove.
	defaultInstallTimeout = 15 * time.Second
)

var (
	// ErrSetupcMissing indicates setupc.exe is not at the configured path.
	ErrSetupcMissing = errors.New("setupc.exe not found")

	// ErrTimeout indicates setupc was killed for exceeding its deadline.
	ErrTimeout = errors.New("setupc command timed out")

	// ErrPairExists is returned by Create when the requested pair number or
	// COM name is already taken.
	ErrPairExists = errors.New("port pair already exists")

	// ErrPairNotFound is returned by Remove for a pair that is not installed.
	ErrPairNotFound = errors.New("port pair not found")
)

// execCommand is swapped out by tests.
var execCommand = exec.CommandContext

// CommandError reports a setupc invocation that ran but exited non-zero.
type CommandError struct {
	Args   []string
	Code   int
	Output string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("setupc %s: exit status %d: %s",
		strings.Join(e.Args, " "), e.Code, strings.TrimSpace(e.Output))
}

// Setupc drives the com0com command line tool. All methods run one setupc
// process to completion and parse what it printed; nothing is cached.
type Setupc struct {
	Path string

	Timeout        time.Duration
	InstallTimeout time.Duration

	log *logrus.Logger
}

func New(path string, log *logrus.Logger) *Setupc {
	if path == "" {
		path = DefaultPath
	}
	return &Setupc{
		Path:           path,
		Timeout:        defaultTimeout,
		InstallTimeout: defaultInstallTimeout,
		log:            log,
	}
}

// run executes one setupc command, returning its merged stdout+stderr.
func (s *Setupc) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := execCommand(runCtx, s.Path, args...)
	hideWindow(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	s.log.Debugf("setupc %s", strings.Join(args, " "))
	err := cmd.Run()
	output := buf.String()

	if err == nil {
		return output, nil
	}

	// The deadline check must come first: a killed process also surfaces
	// as a non-zero exit.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return output, fmt.Errorf("setupc %s: %w", args[0], ErrTimeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &CommandError{Args: args, Code: exitErr.ExitCode(), Output: output}
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
		return output, fmt.Errorf("%w at %s", ErrSetupcMissing, s.Path)
	}
	return output, fmt.Errorf("setupc %s: %w", args[0], err)
}

// List returns the installed pairs in pair-number order.
func (s *Setupc) List(ctx context.Context) ([]PortPair, error) {
	out, err := s.run(ctx, s.Timeout, "list")
	if err != nil {
		return nil, err
	}
	return parsePairs(out), nil
}

// Create installs a new pair. A pair number or COM name already in use
// fails with ErrPairExists before install runs.
func (s *Setupc) Create(ctx context.Context, spec PairSpec) (PortPair, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return PortPair{}, err
	}
	if conflicts(existing, spec) {
		return PortPair{}, ErrPairExists
	}
	return s.install(ctx, spec, existing)
}

func (s *Setupc) install(ctx context.Context, spec PairSpec, existing []PortPair) (PortPair, error) {
	out, err := s.run(ctx, s.InstallTimeout, spec.installArgs()...)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && containsFold(cmdErr.Output, "already") {
			return PortPair{}, ErrPairExists
		}
		return PortPair{}, err
	}

	// Install echoes the new endpoints in list format.
	if pairs := parsePairs(out); len(pairs) > 0 {
		p := pairs[len(pairs)-1]
		s.log.Infof("created pair %s", p)
		return p, nil
	}

	// Some driver versions print nothing useful; re-list and pick the pair
	// that appeared.
	after, err := s.List(ctx)
	if err != nil {
		return PortPair{}, err
	}
	for _, p := range after {
		if !hasPairNumber(existing, p.Number) {
			s.log.Infof("created pair %s", p)
			return p, nil
		}
	}
	return PortPair{}, errors.New("install succeeded but no new pair was found")
}

// Remove uninstalls pair number n. A number that is not installed returns
// ErrPairNotFound without touching the driver.
func (s *Setupc) Remove(ctx context.Context, number int) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	if !hasPairNumber(existing, number) {
		return ErrPairNotFound
	}

	_, err = s.run(ctx, s.Timeout, "remove", strconv.Itoa(number))
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) &&
			(containsFold(cmdErr.Output, "not found") || containsFold(cmdErr.Output, "no such")) {
			return ErrPairNotFound
		}
		return err
	}

	s.log.Infof("removed pair %d", number)
	return nil
}

// Change updates driver parameters on one endpoint, for example
// Change(ctx, "CNCA31", "EmuBR=no").
func (s *Setupc) Change(ctx context.Context, portID, params string) error {
	_, err := s.run(ctx, s.Timeout, "change", portID, params)
	if err != nil {
		return err
	}
	s.log.Infof("changed %s: %s", portID, params)
	return nil
}

func conflicts(existing []PortPair, spec PairSpec) bool {
	for _, p := range existing {
		if spec.Number >= 0 && p.Number == spec.Number {
			return true
		}
		for _, name := range []string{spec.PortNameA, spec.PortNameB} {
			if name == "" {
				continue
			}
			if strings.EqualFold(p.A.ComName(), name) || strings.EqualFold(p.B.ComName(), name) {
				return true
			}
		}
	}
	return false
}

func hasPairNumber(pairs []PortPair, number int) bool {
	for _, p := range pairs {
		if p.Number == number {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
