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

package leaf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🧰 Tools names the external executables the tool-backed leaves shell out to
type Tools struct {
	FFmpeg    string
	Soffice   string
	Magick    string
	Pdftoppm  string
	Pdftotext string
	Pandoc    string
}

// 🏭 DefaultTools resolves every tool from PATH
func DefaultTools() Tools {
	return Tools{
		FFmpeg:    "ffmpeg",
		Soffice:   "soffice",
		Magick:    "magick",
		Pdftoppm:  "pdftoppm",
		Pdftotext: "pdftotext",
		Pandoc:    "pandoc",
	}
}

// withDefaults fills any empty tool name from DefaultTools
func (t Tools) withDefaults() Tools {
	d := DefaultTools()
	if t.FFmpeg == "" {
		t.FFmpeg = d.FFmpeg
	}
	if t.Soffice == "" {
		t.Soffice = d.Soffice
	}
	if t.Magick == "" {
		t.Magick = d.Magick
	}
	if t.Pdftoppm == "" {
		t.Pdftoppm = d.Pdftoppm
	}
	if t.Pdftotext == "" {
		t.Pdftotext = d.Pdftotext
	}
	if t.Pandoc == "" {
		t.Pandoc = d.Pandoc
	}
	return t
}

// 📋 CommandResult captures one external command invocation
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// 🏃 CommandRunner abstracts process execution so leaves can be tested without the tools installed
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// CommandRunnerFunc adapts a function to CommandRunner
type CommandRunnerFunc func(ctx context.Context, name string, args ...string) (CommandResult, error)

func (f CommandRunnerFunc) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	return f(ctx, name, args...)
}

type execRunner struct{}

func (r execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// ❌ CommandError reports a failed tool invocation with its captured output
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = msg[i+1:]
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited with code %d: %s", filepath.Base(e.Command), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// 🔧 Toolchain runs the leaf transformations
type Toolchain struct {
	tools  Tools
	runner CommandRunner
}

// 🏭 NewToolchain creates a toolchain that executes real processes
func NewToolchain(tools Tools) *Toolchain {
	return NewToolchainWithRunner(tools, execRunner{})
}

// NewToolchainWithRunner creates a toolchain with a custom process runner
func NewToolchainWithRunner(tools Tools, runner CommandRunner) *Toolchain {
	return &Toolchain{
		tools:  tools.withDefaults(),
		runner: runner,
	}
}

// Tools returns the resolved tool names
func (t *Toolchain) Tools() Tools {
	return t.tools
}

func (t *Toolchain) run(ctx context.Context, name string, args ...string) error {
	zerolog.Ctx(ctx).Debug().Str("command", name).Strs("args", args).Msg("running tool")

	res, err := t.runner.Run(ctx, name, args...)
	if err != nil {
		return &CommandError{
			Command:  name,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return nil
}

// ensureParent creates the parent directory of an output path
func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Errorf("creating output directory: %w", err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove across devices
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w", dst, err)
	}
	return os.Remove(src)
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
