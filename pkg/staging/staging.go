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

package staging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 📂 Area owns the local directory that remote inputs and pending outputs are staged in.
// Every job gets its own subdirectory so equal object names never collide.
type Area struct {
	fs   afero.Fs
	root string
}

// 🏭 NewArea creates a staging area rooted at root on fs
func NewArea(fs afero.Fs, root string) *Area {
	return &Area{
		fs:   fs,
		root: filepath.Clean(root),
	}
}

// DefaultRoot is used when no staging directory is configured
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "convrt-staging")
}

func (a *Area) Root() string {
	return a.root
}

func (a *Area) Fs() afero.Fs {
	return a.fs
}

// JobDir returns (and creates) the directory reserved for one job
func (a *Area) JobDir(jobID string) (string, error) {
	dir := filepath.Join(a.root, sanitize(jobID))
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// Path returns a staged path for name inside the job's directory
func (a *Area) Path(jobID, name string) (string, error) {
	dir, err := a.JobDir(jobID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sanitize(name)), nil
}

// Locate names a staged path for the job without creating anything
func (a *Area) Locate(jobID, name string) string {
	return filepath.Join(a.root, sanitize(jobID), sanitize(name))
}

// Track wraps an existing staged path so it can be removed exactly once
func (a *Area) Track(path string) *File {
	return &File{path: path, fs: a.fs}
}

// ReleaseJob removes the job's directory if nothing is left in it
func (a *Area) ReleaseJob(ctx context.Context, jobID string) {
	dir := filepath.Join(a.root, sanitize(jobID))
	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := a.fs.Remove(dir); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("removing staging directory")
	}
}

// WriteAtomic streams r into path through a temporary sibling and renames it into place.
// Nothing is left at path or at the temporary name if the copy fails.
func WriteAtomic(fs afero.Fs, path string, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	tempPath := path + ".part"
	f, err := fs.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		fs.Remove(tempPath)
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(tempPath)
		return errors.Errorf("closing temp file: %w", err)
	}

	// rename does not replace an existing file on every Fs
	if _, err := fs.Stat(path); err == nil {
		if err := fs.Remove(path); err != nil {
			fs.Remove(tempPath)
			return errors.Errorf("replacing %s: %w", path, err)
		}
	}
	if err := fs.Rename(tempPath, path); err != nil {
		fs.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	name = strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(name)
	if name == "" || name == "." || name == "/" {
		return "_"
	}
	return name
}

// 🗑️ File is one staged path owned by a single job
type File struct {
	path string
	fs   afero.Fs

	mu      sync.Mutex
	done    bool
	removed bool
	err     error
}

func (f *File) Path() string {
	return f.path
}

// Remove deletes the staged file (or directory) the first time it is called.
// Later calls return the first result without touching the filesystem.
func (f *File) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return f.err
	}
	f.done = true

	if err := f.fs.RemoveAll(f.path); err != nil {
		f.err = errors.Errorf("removing staged file %s: %w", f.path, err)
		return f.err
	}
	f.removed = true
	return nil
}

// Removed reports whether Remove succeeded
func (f *File) Removed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}
