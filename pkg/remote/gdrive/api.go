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

package gdrive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveAPI defines the Drive calls the backend needs
type DriveAPI interface {
	ListPage(ctx context.Context, folderID, pageToken string) (*drive.FileList, error)
	Get(ctx context.Context, fileID string) (*drive.File, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Create(ctx context.Context, meta *drive.File, media io.Reader, contentType string) (*drive.File, error)
}

// driveServiceWrapper wraps the generated Drive service to implement our interface
type driveServiceWrapper struct {
	svc *drive.Service
}

func newDriveAPI(ctx context.Context, ts oauth2.TokenSource) (DriveAPI, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &driveServiceWrapper{svc: svc}, nil
}

func (w *driveServiceWrapper) ListPage(ctx context.Context, folderID, pageToken string) (*drive.FileList, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(folderID, "'", `\'`))
	call := w.svc.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, mimeType)").
		OrderBy("name").
		PageSize(1000).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (w *driveServiceWrapper) Get(ctx context.Context, fileID string) (*drive.File, error) {
	return w.svc.Files.Get(fileID).Fields("id, name, mimeType").Context(ctx).Do()
}

func (w *driveServiceWrapper) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := w.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (w *driveServiceWrapper) Create(ctx context.Context, meta *drive.File, media io.Reader, contentType string) (*drive.File, error) {
	return w.svc.Files.Create(meta).
		Media(media, googleapi.ContentType(contentType)).
		Fields("id, name").
		Context(ctx).
		Do()
}
