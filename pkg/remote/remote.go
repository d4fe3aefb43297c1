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

package remote

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Object is one entry of a container listing
type Object struct {
	ID   string
	Name string
}

// 📤 Upload describes a local file being pushed to a container
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Backend is the entry point for a remote object store (e.g. Google Drive)
type Backend interface {
	// Name returns the backend name (e.g. "gdrive")
	Name() string
	// Authenticate obtains or refreshes a credential and returns a ready client.
	// Failures should wrap ErrAuthRequired when consent is needed but not allowed.
	Authenticate(ctx context.Context) (Client, error)
}

// Client performs calls against an authenticated store
type Client interface {
	// List returns every object directly inside container, all pages included
	List(ctx context.Context, container string) ([]Object, error)
	// Name resolves an object id to its display name
	Name(ctx context.Context, objectID string) (string, error)
	// Open streams the object's content
	Open(ctx context.Context, objectID string) (io.ReadCloser, error)
	// Create registers a new object in container and returns its id
	Create(ctx context.Context, container string, upload Upload) (string, error)
}

// BackendConfig carries the settings a backend factory may need
type BackendConfig struct {
	CredentialsFile string
	TokenFile       string
	Root            string
	Interactive     bool
	// Prompt is shown the consent URL during interactive authentication
	Prompt func(url string)
	Fs     afero.Fs
}

// Factory builds a backend from config
type Factory func(cfg BackendConfig) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Backends lists registered backend names
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NewBackend builds the named backend
func NewBackend(name string, cfg BackendConfig) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("backend %s not found, options: %s", name, strings.Join(Backends(), ", "))
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return factory(cfg)
}
