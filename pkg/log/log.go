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
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	stageWidth  = 12 // Width for pipeline stage
	statusWidth = 15 // Width for status text
)

// 🏷️ FileKind says what the pipeline did with a file
type FileKind string

const (
	KindProcessed FileKind = "processed" // ran through the processor chain
	KindCopied    FileKind = "copied"    // pass-through, copied verbatim
	KindIgnored   FileKind = "ignored"   // hidden, excluded or not a regular file
	KindFailed    FileKind = "failed"    // processing returned an error
)

// 🎯 FileOperation represents a per-file pipeline step for logging
type FileOperation struct {
	Path   string   // Path relative to the processing root
	Stage  string   // preprocess or postprocess
	Kind   FileKind // What happened to the file
	Status string   // Short status text
	Err    error    // Set when Kind is KindFailed
}

// 📦 RunOperation describes one pipeline pass for the header line
type RunOperation struct {
	Stage      string   // preprocess or postprocess
	Source     string   // Where files are read from
	Target     string   // Where files are written to
	Processors []string // Chain in execution order
}

// 🎯 Logger prints a human friendly run log and mirrors it to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	current *RunOperation
	counts  map[FileKind]int
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		counts:  map[FileKind]int{},
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

func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Kind {
	case KindFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case KindCopied:
		symbol = '✓'
		symbolColor = color.FgGreen
	case KindProcessed:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	stageColor := color.FgCyan
	if op.Stage == "postprocess" {
		stageColor = color.FgMagenta
	}

	status := op.Status
	if status == "" {
		status = string(op.Kind)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(stageColor).Sprint(fmt.Sprintf("%-*s", stageWidth, op.Stage)),
		fmt.Sprintf("%-*s", statusWidth, status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[op.Kind]++

	fmt.Fprintln(l.console, l.formatFileOperation(op))

	ev := l.zlog.Info()
	if op.Kind == KindFailed {
		ev = l.zlog.Error().Err(op.Err)
	}
	ev.Str("file", op.Path).
		Str("stage", op.Stage).
		Str("kind", string(op.Kind)).
		Msg("file operation")
}

// 📝 StartRun prints the header of a pipeline pass
func (l *Logger) StartRun(ctx context.Context, op RunOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &op
	l.counts = map[FileKind]int{}

	fmt.Fprintf(l.console, "[%s %s]\n",
		op.Stage,
		color.New(color.FgCyan).Sprint(op.Source))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(strings.Join(op.Processors, " → ")),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Target))

	l.zlog.Info().
		Str("stage", op.Stage).
		Str("source", op.Source).
		Str("target", op.Target).
		Strs("processors", op.Processors).
		Msg("starting pipeline pass")
}

// 📝 EndRun logs the summary of the current pass
func (l *Logger) EndRun(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}

	l.zlog.Info().
		Str("stage", l.current.Stage).
		Int("processed", l.counts[KindProcessed]).
		Int("copied", l.counts[KindCopied]).
		Int("ignored", l.counts[KindIgnored]).
		Int("failed", l.counts[KindFailed]).
		Msg("pipeline pass complete")

	l.current = nil
}

// Count returns how many files of kind were logged in the current pass
func (l *Logger) Count(kind FileKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[kind]
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
	name := color.New(color.Bold, color.FgCyan).Sprint("sqlbatch")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
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
