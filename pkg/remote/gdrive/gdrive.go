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

// Package gdrive implements the remote backend for Google Drive folders
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

func init() {
	remote.RegisterBackend("gdrive", func(cfg remote.BackendConfig) (remote.Backend, error) {
		return New(cfg), nil
	})
}

// ConsentFunc runs an interactive authorization and returns the resulting token
type ConsentFunc func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)

// Backend implements remote.Backend for Google Drive
type Backend struct {
	fs              afero.Fs
	credentialsFile string
	tokenFile       string
	interactive     bool

	consent ConsentFunc
	newAPI  func(ctx context.Context, ts oauth2.TokenSource) (DriveAPI, error)
}

// New creates a Drive backend. The credentials file is the OAuth client JSON
// downloaded from the Google console; the token file caches the refresh token.
func New(cfg remote.BackendConfig) *Backend {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	credentials := cfg.CredentialsFile
	if credentials == "" {
		credentials = "credentials.json"
	}
	token := cfg.TokenFile
	if token == "" {
		token = "token.json"
	}
	prompt := cfg.Prompt
	if prompt == nil {
		prompt = func(url string) {}
	}
	return &Backend{
		fs:              fs,
		credentialsFile: credentials,
		tokenFile:       token,
		interactive:     cfg.Interactive,
		consent:         LoopbackConsent(prompt),
		newAPI:          newDriveAPI,
	}
}

// Name returns the name of the backend
func (b *Backend) Name() string {
	return "gdrive"
}

// Authenticate reuses the persisted token when it is valid or refreshable and
// falls back to interactive consent when allowed
func (b *Backend) Authenticate(ctx context.Context) (remote.Client, error) {
	logger := zerolog.Ctx(ctx)

	creds, err := afero.ReadFile(b.fs, b.credentialsFile)
	if err != nil {
		return nil, errors.Errorf("reading credentials file %s: %w", b.credentialsFile, err)
	}
	conf, err := google.ConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, errors.Errorf("parsing credentials file: %w", err)
	}

	// the session outlives the call that triggered authentication
	bg := context.WithoutCancel(ctx)

	tok, err := b.loadToken()
	if err != nil {
		logger.Warn().Err(err).Str("file", b.tokenFile).Msg("ignoring unreadable token file")
	}
	if tok != nil {
		fresh, err := conf.TokenSource(bg, tok).Token()
		if err != nil {
			logger.Warn().Err(err).Msg("stored token could not be refreshed")
			tok = nil
		} else {
			tok = fresh
		}
	}

	if tok == nil {
		if !b.interactive {
			return nil, errors.Errorf("no usable token in %s and interactive consent is disabled: %w", b.tokenFile, remote.ErrAuthRequired)
		}
		logger.Debug().Msg("starting interactive consent")
		tok, err = b.consent(ctx, conf)
		if err != nil {
			return nil, errors.Errorf("completing consent: %w", err)
		}
	}

	if err := b.saveToken(tok); err != nil {
		return nil, err
	}

	ts := &persistingTokenSource{
		base: conf.TokenSource(bg, tok),
		last: tok,
		save: b.saveToken,
		log:  logger,
	}
	api, err := b.newAPI(bg, ts)
	if err != nil {
		return nil, errors.Errorf("creating drive service: %w", err)
	}
	return &Client{api: api}, nil
}

func (b *Backend) loadToken() (*oauth2.Token, error) {
	data, err := afero.ReadFile(b.fs, b.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Errorf("reading token file: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, errors.Errorf("parsing token file: %w", err)
	}
	return tok, nil
}

func (b *Backend) saveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errors.Errorf("encoding token: %w", err)
	}
	if err := staging.WriteAtomic(b.fs, b.tokenFile, bytes.NewReader(data)); err != nil {
		return errors.Errorf("saving token: %w", err)
	}
	if err := b.fs.Chmod(b.tokenFile, 0o600); err != nil {
		return errors.Errorf("restricting token file: %w", err)
	}
	return nil
}

// persistingTokenSource writes the token back whenever a refresh changes it
type persistingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last *oauth2.Token
	save func(*oauth2.Token) error
	log  *zerolog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.AccessToken != tok.AccessToken {
		if err := s.save(tok); err != nil {
			s.log.Warn().Err(err).Msg("persisting refreshed token")
		}
		s.last = tok
	}
	return tok, nil
}

// Client implements remote.Client over the Drive API. Containers are folder ids.
type Client struct {
	api DriveAPI
}

// List returns every non-folder file in the folder, following every page
func (c *Client) List(ctx context.Context, container string) ([]remote.Object, error) {
	var objects []remote.Object
	pageToken := ""
	for {
		page, err := c.api.ListPage(ctx, container, pageToken)
		if err != nil {
			return nil, mapError(err, container)
		}
		for _, f := range page.Files {
			if f.MimeType == folderMimeType {
				continue
			}
			objects = append(objects, remote.Object{ID: f.Id, Name: f.Name})
		}
		if page.NextPageToken == "" {
			return objects, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) Name(ctx context.Context, objectID string) (string, error) {
	f, err := c.api.Get(ctx, objectID)
	if err != nil {
		return "", mapError(err, objectID)
	}
	return f.Name, nil
}

func (c *Client) Open(ctx context.Context, objectID string) (io.ReadCloser, error) {
	rc, err := c.api.Download(ctx, objectID)
	if err != nil {
		return nil, mapError(err, objectID)
	}
	return rc, nil
}

// Create uploads into the folder; the object exists only if Drive returned its id
func (c *Client) Create(ctx context.Context, container string, upload remote.Upload) (string, error) {
	meta := &drive.File{
		Name:    upload.Name,
		Parents: []string{container},
	}
	f, err := c.api.Create(ctx, meta, upload.Body, upload.ContentType)
	if err != nil {
		return "", mapError(err, container)
	}
	if f == nil || f.Id == "" {
		return "", errors.Errorf("drive returned no id for %s", upload.Name)
	}
	return f.Id, nil
}

func mapError(err error, id string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return errors.Errorf("%w: %s", remote.ErrNotFound, id)
	}
	return err
}
