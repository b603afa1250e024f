// Package routeros holds the shared types of the RouterOS device
// integration layer: command results, the loosely-typed record rows both
// transports produce, and the error taxonomy callers branch on.
package routeros

import (
	"fmt"
	"strings"
)

// Record is one key/value row returned by a device. Both the API transport
// (structured sentences) and the CLI transport (key=value text) produce
// string-valued rows; typed views are built by the parse package.
type Record map[string]string

// CommandResult is the outcome of a single command execution. Execute never
// returns a Go error for transport or protocol failures; they are reported
// here so batch callers can apply their own continue/abort policy.
type CommandResult struct {
	Success bool     `json:"success"`
	Records []Record `json:"records,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// Failure builds a failed result from an error.
func Failure(err error) *CommandResult {
	if err == nil {
		return &CommandResult{Success: true}
	}
	return &CommandResult{Success: false, Err: err.Error()}
}

// Command pairs a command path with its arguments for batch execution.
type Command struct {
	Command string            `json:"command"`
	Args    map[string]string `json:"args,omitempty"`
}

// LineError records one failed line of a best-effort script import.
type LineError struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// ImportResult aggregates a line-by-line configuration import. The import
// continues past failing lines; Success means no line failed at all. Log
// carries the per-line outcome in execution order.
type ImportResult struct {
	Applied    int         `json:"applied"`
	LineErrors []LineError `json:"line_errors,omitempty"`
	Log        []string    `json:"log,omitempty"`
}

// Success reports whether every line applied cleanly.
func (r *ImportResult) Success() bool {
	return r != nil && len(r.LineErrors) == 0
}

// Err joins all line failures into a single error, or nil when clean.
func (r *ImportResult) Err() error {
	if r == nil || len(r.LineErrors) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.LineErrors))
	for _, le := range r.LineErrors {
		parts = append(parts, fmt.Sprintf("line %d (%s): %s", le.Line, le.Text, le.Message))
	}
	return fmt.Errorf("%d of %d lines failed: %s", len(r.LineErrors), r.Applied+len(r.LineErrors), strings.Join(parts, "; "))
}
