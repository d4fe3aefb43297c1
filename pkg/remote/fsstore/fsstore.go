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

// Package fsstore is a remote backend over a directory tree: containers are
// directories below the root and object ids are file paths below the root.
// It serves mounted network shares and offline runs.
package fsstore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

func init() {
	remote.RegisterBackend("filesystem", func(cfg remote.BackendConfig) (remote.Backend, error) {
		if cfg.Root == "" {
			return nil, errors.Errorf("filesystem backend needs a root directory")
		}
		return New(cfg.Fs, cfg.Root), nil
	})
}

// Backend implements remote.Backend over an afero.Fs
type Backend struct {
	fs   afero.Fs
	root string
}

func New(fs afero.Fs, root string) *Backend {
	return &Backend{fs: fs, root: filepath.Clean(root)}
}

func (b *Backend) Name() string {
	return "filesystem"
}

// Authenticate only checks that the root exists
func (b *Backend) Authenticate(ctx context.Context) (remote.Client, error) {
	ok, err := afero.DirExists(b.fs, b.root)
	if err != nil {
		return nil, errors.Errorf("checking root %s: %w", b.root, err)
	}
	if !ok {
		return nil, errors.Errorf("root %s is not a directory", b.root)
	}
	return &Client{fs: afero.NewBasePathFs(b.fs, b.root)}, nil
}

// Client reads and writes below the backend root
type Client struct {
	fs afero.Fs
}

// clean turns an id into a rooted slash path that cannot escape the root
func clean(id string) string {
	return path.Clean("/" + filepath.ToSlash(id))
}

func (c *Client) List(ctx context.Context, container string) ([]remote.Object, error) {
	dir := clean(container)
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", remote.ErrNotFound, container)
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	objects := make([]remote.Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		objects = append(objects, remote.Object{
			ID:   strings.TrimPrefix(path.Join(dir, e.Name()), "/"),
			Name: e.Name(),
		})
	}
	return objects, nil
}

func (c *Client) Name(ctx context.Context, objectID string) (string, error) {
	info, err := c.fs.Stat(clean(objectID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("%w: %s", remote.ErrNotFound, objectID)
		}
		return "", err
	}
	if info.IsDir() {
		return "", errors.Errorf("%s is a directory", objectID)
	}
	return info.Name(), nil
}

func (c *Client) Open(ctx context.Context, objectID string) (io.ReadCloser, error) {
	f, err := c.fs.Open(clean(objectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", remote.ErrNotFound, objectID)
		}
		return nil, err
	}
	return f, nil
}

// Create writes atomically so a failed upload registers nothing
func (c *Client) Create(ctx context.Context, container string, upload remote.Upload) (string, error) {
	dir := clean(container)
	ok, err := afero.DirExists(c.fs, dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Errorf("%w: %s", remote.ErrNotFound, container)
	}

	target := path.Join(dir, path.Base(clean(upload.Name)))
	if err := staging.WriteAtomic(c.fs, target, upload.Body); err != nil {
		return "", err
	}
	return strings.TrimPrefix(target, "/"), nil
}
