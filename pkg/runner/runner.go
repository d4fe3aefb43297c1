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

package runner

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/semaphore"
)

// Coarse progress values reported by every run
const (
	ProgressStarted = 0
	ProgressStaging = 10
	ProgressRunning = 40
	ProgressDone    = 100
)

// 📥 Downloader stages a remote object at a local path. *remote.Session implements it.
type Downloader interface {
	Download(ctx context.Context, objectID, dest string) (string, error)
}

// 🏃 Runner executes jobs on background goroutines
type Runner struct {
	registry   *operation.Registry
	area       *staging.Area
	downloader Downloader
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
}

type Option func(*Runner)

// WithDownloader enables jobs with remote inputs
func WithDownloader(d Downloader) Option {
	return func(r *Runner) {
		r.downloader = d
	}
}

// WithMaxParallel caps how many jobs execute at once. Zero or less means no cap.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// 🏗️ New creates a runner that resolves leaves through registry and stages into area
func New(registry *operation.Registry, area *staging.Area, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		area:     area,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 🏃 Run starts j on its own goroutine and returns immediately. The returned
// channel carries progress events and exactly one terminal event, then closes.
// A failure of any kind, including a panic in the leaf, ends up in the terminal
// event and never reaches the caller.
func (r *Runner) Run(ctx context.Context, j *job.Job) <-chan job.Event {
	events := make(chan job.Event, 4)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(events)

		if err := j.Start(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("refusing to run job twice")
			events <- job.Event{Job: j, Progress: ProgressDone, Terminal: true, Err: err}
			return
		}

		err := r.work(ctx, j, func(p int) {
			select {
			case events <- job.Event{Job: j, Progress: p}:
			default:
			}
		})

		logger := zerolog.Ctx(ctx).With().Str("job", j.ID).Str("operation", string(j.Operation)).Logger()
		if err != nil {
			if terr := j.Transition(job.Failed, job.ErrorMessage(err)); terr != nil {
				logger.Debug().Err(terr).Msg("job state unchanged")
			}
			logger.Error().Err(err).Msg("job failed")
		} else {
			if terr := j.Transition(job.Succeeded, ""); terr != nil {
				logger.Debug().Err(terr).Msg("job state unchanged")
			}
			logger.Debug().Msg("job succeeded")
		}

		events <- job.Event{Job: j, Progress: ProgressDone, Terminal: true, Err: err}
	}()

	return events
}

// Wait blocks until every started job has sent its terminal event
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) work(ctx context.Context, j *job.Job, progress func(int)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &job.ConversionError{Operation: j.Operation, Err: errors.Errorf("panic: %v", p)}
		}
	}()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return errors.Errorf("waiting for a worker slot: %w", err)
		}
		defer r.sem.Release(1)
	}
	progress(ProgressStarted)

	leaf, err := r.registry.Resolve(j.Operation)
	if err != nil {
		return err
	}

	inputs := j.Input.Paths
	if j.Input.IsRemote() {
		if err := j.Transition(job.Staging, ""); err != nil {
			return err
		}
		progress(ProgressStaging)

		inputs, err = r.stage(ctx, j)
		if err != nil {
			return err
		}
	}

	if err := j.Transition(job.Running, ""); err != nil {
		return err
	}
	progress(ProgressRunning)

	zerolog.Ctx(ctx).Debug().Str("job", j.ID).Strs("inputs", inputs).Str("output", j.Output.Path()).Msg("running leaf")

	if err := leaf(ctx, inputs, j.Output.Path(), j.Options.Clone()); err != nil {
		return &job.ConversionError{Operation: j.Operation, Err: err}
	}
	return nil
}

// stage downloads every remote input into the job's staging directory. Each
// path is owned by the job before the download starts, so a failed transfer
// is still cleaned up.
func (r *Runner) stage(ctx context.Context, j *job.Job) ([]string, error) {
	if r.downloader == nil {
		return nil, errors.Errorf("%w: job %s has remote inputs", remote.ErrAuthRequired, j.ID)
	}

	local := make([]string, 0, len(j.Input.Paths))
	for i, id := range j.Input.Paths {
		name := path.Base(id)
		if i < len(j.Names) && j.Names[i] != "" {
			name = j.Names[i]
		}
		if len(j.Input.Paths) > 1 {
			name = fmt.Sprintf("%03d_%s", i, name)
		}

		dest := r.area.Locate(j.ID, name)
		j.AddStaged(r.area.Track(dest))

		got, err := r.downloader.Download(ctx, id, dest)
		if err != nil {
			return nil, err
		}
		local = append(local, got)
	}
	return local, nil
}
