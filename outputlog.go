package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/widget"

	"github.com/serialsplit/splitgui/com0com"
	"github.com/serialsplit/splitgui/hub4com"
	"github.com/serialsplit/splitgui/serialport"
)

// maxLogLines bounds the log view; the oldest lines fall off first.
const maxLogLines = 2000

const (
	levelInfo  = ""
	levelOK    = "OK"
	levelWarn  = "WARN"
	levelError = "ERROR"
)

var sectionRule = strings.Repeat("-", 60)

// outputLog renders operator-facing messages into a read-only entry. Tagged
// lines carry a [LEVEL] prefix; informational lines are plain.
type outputLog struct {
	mu    sync.Mutex
	lines []string
	view  *widget.Entry
}

func newOutputLog() *outputLog {
	view := widget.NewMultiLineEntry()
	view.SetReadOnly(true)
	return &outputLog{view: view}
}

func (l *outputLog) push(lines ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, lines...)
	if len(l.lines) > maxLogLines {
		l.lines = l.lines[len(l.lines)-maxLogLines:]
	}
	l.view.SetText(strings.Join(l.lines, "\n"))
}

// Append adds a raw tool output line, inferring its severity tag from the
// wording.
func (l *outputLog) Append(line string) { l.push(tagLine(inferLevel(line), line)) }

func (l *outputLog) Info(line string)  { l.push(line) }
func (l *outputLog) OK(line string)    { l.push(tagLine(levelOK, line)) }
func (l *outputLog) Warn(line string)  { l.push(tagLine(levelWarn, line)) }
func (l *outputLog) Error(line string) { l.push(tagLine(levelError, line)) }

// Section writes a dashed header block separating phases of a run.
func (l *outputLog) Section(header string) {
	l.push("", sectionRule, header, sectionRule, "")
}

// KeyValue writes one "key: value" line.
func (l *outputLog) KeyValue(key, value string) { l.push(key + ": " + value) }

func (l *outputLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.view.SetText("")
}

// Text returns the current log content.
func (l *outputLog) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func tagLine(tag, line string) string {
	if tag == levelInfo {
		return line
	}
	return "[" + tag + "] " + line
}

// inferLevel guesses a severity for raw hub4com output from its wording.
func inferLevel(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		return levelError
	case strings.Contains(lower, "warn"):
		return levelWarn
	case strings.Contains(lower, "success") || strings.Contains(lower, "started"):
		return levelOK
	}
	return levelInfo
}

// friendlyError rewords tool and port errors for dialogs and the log.
func friendlyError(err error) string {
	var cmdErr *com0com.CommandError
	switch {
	case errors.Is(err, com0com.ErrPairExists):
		return "That port pair already exists."
	case errors.Is(err, com0com.ErrPairNotFound):
		return "No such port pair. It may already have been removed."
	case errors.Is(err, com0com.ErrSetupcMissing):
		return fmt.Sprintf("setupc.exe was not found. Install com0com or set SPLITGUI_SETUPC_PATH. (%v)", err)
	case errors.Is(err, com0com.ErrTimeout):
		return "setupc.exe did not answer in time. The com0com driver may be busy installing ports."
	case errors.Is(err, hub4com.ErrExeMissing):
		return fmt.Sprintf("hub4com.exe was not found. Install it alongside com0com or set SPLITGUI_HUB4COM_PATH. (%v)", err)
	case errors.Is(err, serialport.ErrAccessDenied):
		return "Access to the serial port registry was denied. Try running as Administrator."
	case errors.Is(err, serialport.ErrUnavailable):
		return "Serial port scanning is only available on Windows."
	case errors.As(err, &cmdErr):
		return fmt.Sprintf("setupc.exe exited with status %d: %s", cmdErr.Code, strings.TrimSpace(cmdErr.Output))
	}
	return err.Error()
}
