// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	jobIndent   = 4  // spaces to indent job entries
	nameWidth   = 35 // Base width for input name
	opWidth     = 22 // Width for operation id
	statusWidth = 15 // Width for status text
)

// 🎯 JobEntry is one job's line in the visible log
type JobEntry struct {
	JobID        string // Job id
	Input        string // Input display name
	Output       string // Output path or remote id
	Operation    string // Operation id
	Message      string // Terminal message shown to the user
	Succeeded    bool   // Whether the conversion succeeded
	Uploaded     bool   // Whether the output reached remote storage
	UploadFailed bool   // Whether the upload of a converted output failed
}

// 📦 RequestOperation describes one submitted request
type RequestOperation struct {
	ID        string // Request id
	Operation string // Operation id
	Jobs      int    // Number of planned jobs
	Remote    bool   // Whether remote storage is involved
	Batch     bool   // Whether the request was batch expanded
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	mu        sync.Mutex
	currentOp *RequestOperation
	entries   []JobEntry
}

// 🏭 New creates a new logger; the structured mirror goes to stderr
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatJobEntry formats a job entry for display
func (l *Logger) formatJobEntry(e JobEntry) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case !e.Succeeded:
		symbol = '✗'
		symbolColor = color.FgRed
	case e.UploadFailed:
		symbol = '⚠'
		symbolColor = color.FgYellow
	case e.Uploaded:
		symbol = '⇡'
		symbolColor = color.FgBlue
	default:
		symbol = '✓'
		symbolColor = color.FgGreen
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", jobIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, e.Input),
		color.New(color.FgCyan).Sprint(fmt.Sprintf("%-*s", opWidth, e.Operation)),
		fmt.Sprintf("%-*s", statusWidth, e.Message))
}

// 📝 LogJob appends a job's terminal message to the visible log
func (l *Logger) LogJob(ctx context.Context, e JobEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)

	fmt.Fprintln(l.console, l.formatJobEntry(e))

	l.zlog.Info().
		Str("job", e.JobID).
		Str("input", e.Input).
		Str("output", e.Output).
		Str("operation", e.Operation).
		Str("message", e.Message).
		Bool("succeeded", e.Succeeded).
		Bool("uploaded", e.Uploaded).
		Bool("upload_failed", e.UploadFailed).
		Msg("job finished")
}

// 📝 StartRequest starts a new request operation
func (l *Logger) StartRequest(ctx context.Context, op RequestOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.entries = nil

	where := "local"
	if op.Remote {
		where = "remote"
	}
	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Operation),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d job(s), %s", op.Jobs, where))

	l.zlog.Info().
		Str("request", op.ID).
		Str("operation", op.Operation).
		Int("jobs", op.Jobs).
		Bool("remote", op.Remote).
		Bool("batch", op.Batch).
		Msg("starting request")
}

// 📝 EndRequest ends the current request operation and returns its entries
func (l *Logger) EndRequest(ctx context.Context) []JobEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return nil
	}

	// a remote job logs its conversion and its upload as two entries
	jobs := map[string]bool{}
	for _, e := range l.entries {
		ok, seen := jobs[e.JobID]
		jobs[e.JobID] = (ok || !seen) && e.Succeeded && !e.UploadFailed
	}
	failed := 0
	for _, ok := range jobs {
		if !ok {
			failed++
		}
	}
	l.zlog.Info().
		Str("request", l.currentOp.ID).
		Int("jobs", len(jobs)).
		Int("failed", failed).
		Msg("request complete")

	entries := l.entries
	l.currentOp = nil
	l.entries = nil
	return entries
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	appText := color.New(color.Bold, color.FgCyan).Sprint("convrt")
	fmt.Fprintf(l.console, "\n%s %s\n\n", appText, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
