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
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"
)

// 🔑 State is the explicit authentication state of a Session
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// 🔗 Session is the single owned handle to a remote store. It is safe for
// concurrent use; at most one authentication runs at a time and concurrent
// callers share its result.
type Session struct {
	backend Backend
	fs      afero.Fs

	group singleflight.Group

	mu     sync.RWMutex
	client Client
}

// 🏭 NewSession creates an unauthenticated session over backend.
// Local paths given to Download and Upload are resolved on fs.
func NewSession(backend Backend, fs afero.Fs) *Session {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Session{
		backend: backend,
		fs:      fs,
	}
}

func (s *Session) Backend() string {
	return s.backend.Name()
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client != nil {
		return Authenticated
	}
	return Unauthenticated
}

// Authenticate establishes the session if it is not already established
func (s *Session) Authenticate(ctx context.Context) error {
	_, err := s.ensure(ctx)
	return err
}

// ensure returns the authenticated client, running at most one authentication
// attempt for this call
func (s *Session) ensure(ctx context.Context) (Client, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, shared := s.group.Do("authenticate", func() (any, error) {
		s.mu.RLock()
		existing := s.client
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		zerolog.Ctx(ctx).Debug().Str("backend", s.backend.Name()).Msg("authenticating")

		c, err := s.backend.Authenticate(ctx)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return nil, err
			}
			return nil, &AuthError{Backend: s.backend.Name(), Err: err}
		}

		s.mu.Lock()
		s.client = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Bool("shared", shared).Msg("session ready")
	return v.(Client), nil
}

// ListObjects returns the full listing of container or an error, never a partial result
func (s *Session) ListObjects(ctx context.Context, container string) ([]Object, error) {
	client, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}

	objects, err := client.List(ctx, container)
	if err != nil {
		return nil, &Error{Op: "list", ID: container, Err: err}
	}
	return objects, nil
}

// ResolveName returns the display name of objectID
func (s *Session) ResolveName(ctx context.Context, objectID string) (string, error) {
	client, err := s.ensure(ctx)
	if err != nil {
		return "", err
	}

	name, err := client.Name(ctx, objectID)
	if err != nil {
		return "", &Error{Op: "resolve", ID: objectID, Err: err}
	}
	return name, nil
}

// Download streams objectID to dest, replacing any existing file. A failed
// transfer leaves nothing at dest.
func (s *Session) Download(ctx context.Context, objectID, dest string) (string, error) {
	client, err := s.ensure(ctx)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().Str("object", objectID).Str("dest", dest).Msg("downloading")

	body, err := client.Open(ctx, objectID)
	if err != nil {
		return "", &Error{Op: "download", ID: objectID, Err: err}
	}
	defer body.Close()

	if err := staging.WriteAtomic(s.fs, dest, body); err != nil {
		return "", &Error{Op: "download", ID: objectID, Err: err}
	}
	return dest, nil
}

// Upload streams localPath into container and returns the new object id
func (s *Session) Upload(ctx context.Context, localPath, container string) (string, error) {
	client, err := s.ensure(ctx)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().Str("path", localPath).Str("container", container).Msg("uploading")

	f, err := s.fs.Open(localPath)
	if err != nil {
		return "", &Error{Op: "upload", ID: localPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &Error{Op: "upload", ID: localPath, Err: err}
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &Error{Op: "upload", ID: localPath, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", &Error{Op: "upload", ID: localPath, Err: err}
	}

	id, err := client.Create(ctx, container, Upload{
		Name:        filepath.Base(localPath),
		ContentType: mtype.String(),
		Size:        info.Size(),
		Body:        f,
	})
	if err != nil {
		return "", &Error{Op: "upload", ID: container, Err: err}
	}
	return id, nil
}
