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

// Package github stores objects as GitHub release assets.
//
// A container is "owner/repo@tag" and an object id is "owner/repo/assetID".
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/remote"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
)

// GitHubClient defines the interface for GitHub API operations we need
type GitHubClient interface {
	AuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error)
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error)
	ListReleaseAssets(ctx context.Context, owner, repo string, id int64, opts *github.ListOptions) ([]*github.ReleaseAsset, *github.Response, error)
	GetReleaseAsset(ctx context.Context, owner, repo string, id int64) (*github.ReleaseAsset, *github.Response, error)
	DownloadReleaseAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, error)
	UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opts *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error)
}

func init() {
	remote.RegisterBackend("github", func(cfg remote.BackendConfig) (remote.Backend, error) {
		return NewBackend(cfg), nil
	})
}

// githubClientWrapper wraps the GitHub client to implement our interface
type githubClientWrapper struct {
	client *github.Client
}

func (w *githubClientWrapper) AuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	return w.client.Users.Get(ctx, "")
}

func (w *githubClientWrapper) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error) {
	return w.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
}

func (w *githubClientWrapper) ListReleaseAssets(ctx context.Context, owner, repo string, id int64, opts *github.ListOptions) ([]*github.ReleaseAsset, *github.Response, error) {
	return w.client.Repositories.ListReleaseAssets(ctx, owner, repo, id, opts)
}

func (w *githubClientWrapper) GetReleaseAsset(ctx context.Context, owner, repo string, id int64) (*github.ReleaseAsset, *github.Response, error) {
	return w.client.Repositories.GetReleaseAsset(ctx, owner, repo, id)
}

func (w *githubClientWrapper) DownloadReleaseAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, error) {
	rc, redirect, err := w.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, http.DefaultClient)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, errors.Errorf("asset %d redirected to %s without content", id, redirect)
	}
	return rc, nil
}

func (w *githubClientWrapper) UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opts *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error) {
	return w.client.Repositories.UploadReleaseAsset(ctx, owner, repo, id, opts, file)
}

// Backend implements remote.Backend for GitHub releases
type Backend struct {
	fs        afero.Fs
	tokenFile string
	newClient func(ctx context.Context, token string) GitHubClient
}

// NewBackend creates a release-assets backend. The token comes from
// GITHUB_TOKEN or, failing that, the configured token file.
func NewBackend(cfg remote.BackendConfig) *Backend {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Backend{
		fs:        fs,
		tokenFile: cfg.TokenFile,
		newClient: func(ctx context.Context, token string) GitHubClient {
			httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
			return &githubClientWrapper{client: github.NewClient(httpClient)}
		},
	}
}

// Name returns the name of the backend
func (b *Backend) Name() string {
	return "github"
}

func (b *Backend) token() (string, error) {
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		return token, nil
	}
	if b.tokenFile == "" {
		return "", nil
	}
	data, err := afero.ReadFile(b.fs, b.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Authenticate verifies the token against the API
func (b *Backend) Authenticate(ctx context.Context) (remote.Client, error) {
	token, err := b.token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.Errorf("no GITHUB_TOKEN set and no token file: %w", remote.ErrAuthRequired)
	}

	client := b.newClient(context.WithoutCancel(ctx), token)
	user, _, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return nil, errors.Errorf("verifying token: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("user", user.GetLogin()).Msg("authenticated with github")

	return &Client{client: client}, nil
}

// Client implements remote.Client over release assets
type Client struct {
	client GitHubClient
}

type releaseRef struct {
	owner, repo, tag string
}

func parseContainer(container string) (releaseRef, error) {
	repoPart, tag, ok := strings.Cut(container, "@")
	if !ok || strings.TrimSpace(tag) == "" {
		return releaseRef{}, errors.Errorf("invalid container %q, expected owner/repo@tag", container)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return releaseRef{}, errors.Errorf("invalid container %q, expected owner/repo@tag", container)
	}
	return releaseRef{owner: owner, repo: repo, tag: strings.TrimSpace(tag)}, nil
}

type assetRef struct {
	owner, repo string
	id          int64
}

func parseObjectID(objectID string) (assetRef, error) {
	parts := strings.Split(objectID, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return assetRef{}, errors.Errorf("invalid object id %q, expected owner/repo/assetID", objectID)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return assetRef{}, errors.Errorf("invalid asset id in %q: %w", objectID, err)
	}
	return assetRef{owner: parts[0], repo: parts[1], id: id}, nil
}

func objectID(owner, repo string, id int64) string {
	return fmt.Sprintf("%s/%s/%d", owner, repo, id)
}

func (c *Client) release(ctx context.Context, ref releaseRef) (*github.RepositoryRelease, error) {
	rel, resp, err := c.client.GetReleaseByTag(ctx, ref.owner, ref.repo, ref.tag)
	if err != nil {
		return nil, mapError(err, resp, fmt.Sprintf("%s/%s@%s", ref.owner, ref.repo, ref.tag))
	}
	return rel, nil
}

// List returns every asset of the release, following pagination
func (c *Client) List(ctx context.Context, container string) ([]remote.Object, error) {
	ref, err := parseContainer(container)
	if err != nil {
		return nil, err
	}
	rel, err := c.release(ctx, ref)
	if err != nil {
		return nil, err
	}

	var objects []remote.Object
	opts := &github.ListOptions{PerPage: 100}
	for {
		assets, resp, err := c.client.ListReleaseAssets(ctx, ref.owner, ref.repo, rel.GetID(), opts)
		if err != nil {
			return nil, mapError(err, resp, container)
		}
		for _, a := range assets {
			objects = append(objects, remote.Object{ID: objectID(ref.owner, ref.repo, a.GetID()), Name: a.GetName()})
		}
		if resp == nil || resp.NextPage == 0 {
			return objects, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Client) Name(ctx context.Context, id string) (string, error) {
	ref, err := parseObjectID(id)
	if err != nil {
		return "", err
	}
	asset, resp, err := c.client.GetReleaseAsset(ctx, ref.owner, ref.repo, ref.id)
	if err != nil {
		return "", mapError(err, resp, id)
	}
	return asset.GetName(), nil
}

func (c *Client) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	ref, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	rc, err := c.client.DownloadReleaseAsset(ctx, ref.owner, ref.repo, ref.id)
	if err != nil {
		return nil, mapError(err, nil, id)
	}
	return rc, nil
}

// Create uploads a new asset. The upload API needs a real file, so the body is
// spooled to a temporary file first.
func (c *Client) Create(ctx context.Context, container string, upload remote.Upload) (string, error) {
	ref, err := parseContainer(container)
	if err != nil {
		return "", err
	}
	rel, err := c.release(ctx, ref)
	if err != nil {
		return "", err
	}

	spool, err := os.CreateTemp("", "convrt-asset-*")
	if err != nil {
		return "", errors.Errorf("creating spool file: %w", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	if _, err := io.Copy(spool, upload.Body); err != nil {
		return "", errors.Errorf("spooling upload: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return "", errors.Errorf("rewinding spool file: %w", err)
	}

	asset, resp, err := c.client.UploadReleaseAsset(ctx, ref.owner, ref.repo, rel.GetID(), &github.UploadOptions{
		Name:      upload.Name,
		MediaType: upload.ContentType,
	}, spool)
	if err != nil {
		return "", mapError(err, resp, container)
	}
	if asset.GetID() == 0 {
		return "", errors.Errorf("github returned no asset id for %s", upload.Name)
	}
	return objectID(ref.owner, ref.repo, asset.GetID()), nil
}

func mapError(err error, resp *github.Response, id string) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.Errorf("rate limit exceeded: %w", err)
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return errors.Errorf("%w: %s", remote.ErrNotFound, id)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		return errors.Errorf("%w: %s", remote.ErrNotFound, id)
	}
	return err
}
