// Package applog is the injected logging and progress-reporting surface
// every other package receives instead of calling pterm or fmt directly.
// A Sink renders lines through pterm in interactive mode and falls back to
// plain fmt.Println under pterm.RawOutput, the same two-path split the CLI
// shell uses for its own table/spinner output.
package applog

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Sink is the logger every component is handed instead of a global logger.
// Log is for one-line status/diagnostic messages; Progress reports
// done-of-total counters for a named phase (index rebuild, deploy,
// restore) and may be called with total == 0 when the count isn't known in
// advance.
type Sink struct {
	// Quiet suppresses Log calls below Warn severity. Progress calls are
	// never suppressed.
	Quiet bool
}

// Severity controls which pterm print style a Log line uses.
type Severity int

const (
	Info Severity = iota
	Warn
	Error
	Success
)

// Log renders one message at the given severity.
func (s Sink) Log(sev Severity, format string, args ...any) {
	if s.Quiet && sev == Info {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if pterm.RawOutput {
		fmt.Println(rawPrefix(sev) + msg)
		return
	}
	switch sev {
	case Warn:
		pterm.Warning.Println(msg)
	case Error:
		pterm.Error.Println(msg)
	case Success:
		pterm.Success.Println(msg)
	default:
		pterm.Info.Println(msg)
	}
}

func rawPrefix(sev Severity) string {
	switch sev {
	case Warn:
		return "WARN: "
	case Error:
		return "ERROR: "
	case Success:
		return "OK: "
	default:
		return ""
	}
}

// Progress reports coarse-grained progress for one phase of a longer
// operation (e.g. "deploy", "restore", "index rebuild"). done/total is
// 0/0 when the total isn't known ahead of time.
func (s Sink) Progress(phase string, done, total int) {
	if pterm.RawOutput {
		if total > 0 {
			fmt.Printf("%s: %d/%d\n", phase, done, total)
		}
		return
	}
	if total > 0 {
		pterm.Printf("%s: %d/%d\n", phase, done, total)
	}
}

// ProgressFunc adapts Sink.Progress to the (done, total, phase) callback
// signature the deploy engine accepts.
func (s Sink) ProgressFunc() func(done, total int, phase string) {
	return func(done, total int, phase string) { s.Progress(phase, done, total) }
}

// LogFunc adapts Sink.Log at Info severity to the plain func(string)
// signature several internal packages (deploy, restore, backup) accept for
// per-file/per-mod progress lines.
func (s Sink) LogFunc() func(string) {
	return func(msg string) { s.Log(Info, "%s", msg) }
}
