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

package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

// ErrUpload matches every *UploadError
var ErrUpload = errors.Base("upload failed")

// ❌ UploadError reports a converted output that did not reach remote storage.
// The conversion itself succeeded.
type UploadError struct {
	Path      string
	Container string
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s to %s: %v", filepath.Base(e.Path), e.Container, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}

// 📤 Uploader sends a local file to a container. *remote.Session implements it.
type Uploader interface {
	Upload(ctx context.Context, localPath, container string) (string, error)
}

// 🚦 Status is the final outcome shown for a job
type Status int

const (
	StatusSucceeded Status = iota
	StatusConversionFailed
	StatusUploadFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusConversionFailed:
		return "conversion failed"
	case StatusUploadFailed:
		return "upload failed"
	default:
		return "unknown"
	}
}

// 📋 Report is the coordinated result of one job
type Report struct {
	Job    *job.Job
	Status Status
	// Err is the conversion error or the *UploadError, matching Status
	Err error
	// Uploaded lists the remote ids created for the output
	Uploaded []string
	// Kept is the staged output left on disk after a failed upload
	Kept string
	// CleanupErrs are staged file removals that failed; they never change Status
	CleanupErrs []error
}

// Message is the final status line for the job
func (r Report) Message() string {
	switch r.Status {
	case StatusSucceeded:
		if len(r.Uploaded) > 0 {
			return fmt.Sprintf("Conversion successful! Uploaded %d file(s)", len(r.Uploaded))
		}
		return job.SuccessMessage
	case StatusUploadFailed:
		if len(r.Uploaded) > 0 {
			return fmt.Sprintf("Conversion successful, upload failed after %d file(s) (%s): %v", len(r.Uploaded), strings.Join(r.Uploaded, ", "), r.Err)
		}
		return fmt.Sprintf("Conversion successful, upload failed: %v", r.Err)
	default:
		return job.ErrorMessage(r.Err)
	}
}

// 🧭 Coordinator post-processes terminal events
type Coordinator struct {
	logger   *log.Logger
	area     *staging.Area
	uploader Uploader
}

type Option func(*Coordinator)

// WithUploader enables uploads for jobs with a remote destination
func WithUploader(u Uploader) Option {
	return func(c *Coordinator) {
		c.uploader = u
	}
}

// 🏗️ New creates a coordinator that reports to logger. Staged outputs live in area.
func New(logger *log.Logger, area *staging.Area, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger: logger,
		area:   area,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// 🧭 Handle consumes the terminal event of a job. It logs the outcome, removes
// staged inputs, uploads the output when the job succeeded and its destination
// is remote, drops the staged output of a failed job, then releases the job's
// staging directory. Staged inputs are always
// removed before any upload starts.
func (c *Coordinator) Handle(ctx context.Context, ev job.Event) Report {
	j := ev.Job
	logger := zerolog.Ctx(ctx).With().Str("job", j.ID).Logger()

	report := Report{Job: j, Status: StatusSucceeded}
	if ev.Err != nil {
		report.Status = StatusConversionFailed
		report.Err = ev.Err
	}

	c.logger.LogJob(ctx, log.JobEntry{
		JobID:     j.ID,
		Input:     j.DisplayName(),
		Output:    j.Output.Path(),
		Operation: string(j.Operation),
		Message:   ev.Message(),
		Succeeded: ev.Succeeded(),
	})

	for _, f := range j.Staged() {
		if err := f.Remove(); err != nil {
			logger.Warn().Err(err).Msg("staged input left behind")
			c.logger.Warningf("could not remove staged input %s: %v", f.Path(), err)
			report.CleanupErrs = append(report.CleanupErrs, err)
		}
	}

	if ev.Succeeded() && j.Destination.IsRemote() {
		c.upload(ctx, j, &report)
	}

	// a failed leaf may leave a partial output in the job's staging directory
	if !ev.Succeeded() && c.isStaged(j.Output.Path()) {
		if err := c.area.Track(j.Output.Path()).Remove(); err != nil {
			logger.Warn().Err(err).Msg("partial output left behind")
			c.logger.Warningf("could not remove partial output %s: %v", j.Output.Path(), err)
			report.CleanupErrs = append(report.CleanupErrs, err)
		}
	}

	c.area.ReleaseJob(ctx, j.ID)

	logger.Debug().Str("status", report.Status.String()).Msg("job coordinated")
	return report
}

func (c *Coordinator) upload(ctx context.Context, j *job.Job, report *Report) {
	output := j.Output.Path()
	container := j.Destination.Path()

	files, err := c.outputFiles(output)
	if err == nil && c.uploader == nil {
		err = errors.Errorf("%w: no remote session to upload with", remote.ErrAuthRequired)
	}
	if err == nil {
		for _, f := range files {
			id, uerr := c.uploader.Upload(ctx, f, container)
			if uerr != nil {
				err = uerr
				break
			}
			report.Uploaded = append(report.Uploaded, id)
		}
	}

	entry := log.JobEntry{
		JobID:     j.ID,
		Input:     j.DisplayName(),
		Output:    container,
		Operation: string(j.Operation),
		Succeeded: true,
	}

	if err != nil {
		report.Status = StatusUploadFailed
		report.Err = &UploadError{Path: output, Container: container, Err: err}
		report.Kept = output

		entry.UploadFailed = true
		entry.Message = "Upload failed: " + err.Error()
		c.logger.LogJob(ctx, entry)
		if len(report.Uploaded) > 0 {
			c.logger.Warningf("converted output kept at %s; %d file(s) already uploaded to %s", output, len(report.Uploaded), container)
		} else {
			c.logger.Warningf("converted output kept at %s", output)
		}
		return
	}

	entry.Uploaded = true
	entry.Message = "Uploaded " + strings.Join(report.Uploaded, ", ")
	c.logger.LogJob(ctx, entry)

	if err := c.area.Track(output).Remove(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("job", j.ID).Msg("staged output left behind")
		report.CleanupErrs = append(report.CleanupErrs, err)
	}
}

// isStaged reports whether path lies inside the staging area
func (c *Coordinator) isStaged(path string) bool {
	if path == "" {
		return false
	}
	rel, err := filepath.Rel(c.area.Root(), filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// outputFiles lists what to upload: the output itself, or the files directly
// inside it for directory outputs
func (c *Coordinator) outputFiles(output string) ([]string, error) {
	fs := c.area.Fs()
	info, err := fs.Stat(output)
	if err != nil {
		return nil, errors.Errorf("reading output %s: %w", output, err)
	}
	if !info.IsDir() {
		return []string{output}, nil
	}

	entries, err := afero.ReadDir(fs, output)
	if err != nil {
		return nil, errors.Errorf("listing output %s: %w", output, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(output, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("output directory %s is empty", output)
	}
	return files, nil
}
