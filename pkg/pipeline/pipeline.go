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

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/convrt/pkg/coordinator"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/planner"
	"github.com/walteh/convrt/pkg/runner"
	"github.com/walteh/convrt/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// 📊 ProgressFunc receives the aggregated progress of a request after every event
type ProgressFunc func(percent, done, total int)

// 🚰 Pipeline is the foreground side of a request: it plans, starts every job,
// consumes their events as they arrive and coordinates each terminal event.
type Pipeline struct {
	planner     *planner.Planner
	runner      *runner.Runner
	coordinator *coordinator.Coordinator
	logger      *log.Logger
	history     *state.State
	progress    ProgressFunc
}

type Option func(*Pipeline)

// WithHistory records every request in the journal and enables Retry
func WithHistory(s *state.State) Option {
	return func(p *Pipeline) {
		p.history = s
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// 🏗️ New wires the pipeline components together
func New(pl *planner.Planner, r *runner.Runner, c *coordinator.Coordinator, logger *log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		planner:     pl,
		runner:      r,
		coordinator: c,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// 📋 Summary is the outcome of one request, one report per job in plan order
type Summary struct {
	Request planner.Request
	Reports []coordinator.Report
}

func (s *Summary) count(status coordinator.Status) int {
	n := 0
	for _, r := range s.Reports {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s *Summary) Succeeded() int {
	return s.count(coordinator.StatusSucceeded)
}

func (s *Summary) ConversionFailures() int {
	return s.count(coordinator.StatusConversionFailed)
}

func (s *Summary) UploadFailures() int {
	return s.count(coordinator.StatusUploadFailed)
}

// Message is the final status of the whole request
func (s *Summary) Message() string {
	total := len(s.Reports)
	if len(s.Reports) == 1 {
		return s.Reports[0].Message()
	}
	msg := fmt.Sprintf("%d of %d job(s) succeeded", s.Succeeded(), total)
	if n := s.ConversionFailures(); n > 0 {
		msg += fmt.Sprintf(", %d conversion(s) failed", n)
	}
	if n := s.UploadFailures(); n > 0 {
		msg += fmt.Sprintf(", %d upload(s) failed", n)
	}
	return msg
}

// 🚀 Submit runs a request to completion. Request-level failures (unknown
// operation, invalid options, missing session, failed listing) are returned as
// errors before any job exists; job failures are reported in the Summary.
func (p *Pipeline) Submit(ctx context.Context, req planner.Request) (*Summary, error) {
	return p.submit(ctx, req, "")
}

// 🔁 Retry re-submits a recorded request as a new request with fresh jobs
func (p *Pipeline) Retry(ctx context.Context, requestID string) (*Summary, error) {
	if p.history == nil {
		return nil, errors.New("retry needs a history journal")
	}
	rec, err := p.history.Lookup(requestID)
	if err != nil {
		return nil, err
	}

	req := rec.Request
	req.ID = ""
	return p.submit(ctx, req, requestID)
}

func (p *Pipeline) submit(ctx context.Context, req planner.Request, retryOf string) (*Summary, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := zerolog.Ctx(ctx).With().Str("request", req.ID).Logger()
	ctx = logger.WithContext(ctx)

	jobs, err := p.planner.Plan(ctx, req)
	if err != nil {
		p.record(ctx, state.RequestRecord{Request: req, RetryOf: retryOf, Error: err.Error()})
		return nil, errors.Errorf("planning request %s: %w", req.ID, err)
	}

	p.logger.StartRequest(ctx, log.RequestOperation{
		ID:        req.ID,
		Operation: string(req.Operation),
		Jobs:      len(jobs),
		Remote:    req.Remote,
		Batch:     req.Batch,
	})

	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		index[j.ID] = i
	}

	summary := &Summary{Request: req, Reports: make([]coordinator.Report, len(jobs))}
	progress := make([]int, len(jobs))
	done := 0

	for ev := range p.start(ctx, jobs) {
		i := index[ev.Job.ID]
		progress[i] = ev.Progress
		if ev.Terminal {
			summary.Reports[i] = p.coordinator.Handle(ctx, ev)
			done++
		}
		p.report(progress, done)
	}

	p.logger.EndRequest(ctx)

	rec := state.RequestRecord{Request: req, RetryOf: retryOf}
	for _, r := range summary.Reports {
		rec.Jobs = append(rec.Jobs, state.JobRecord{
			JobID:    r.Job.ID,
			Input:    r.Job.DisplayName(),
			Output:   r.Job.Output.Path(),
			Status:   r.Status.String(),
			Message:  r.Message(),
			Uploaded: r.Uploaded,
			Kept:     r.Kept,
		})
	}
	p.record(ctx, rec)

	logger.Debug().Int("succeeded", summary.Succeeded()).Int("jobs", len(jobs)).Msg("request finished")
	return summary, nil
}

// start runs every job and merges their event channels. The merged channel
// closes once every job has sent its terminal event.
func (p *Pipeline) start(ctx context.Context, jobs []*job.Job) <-chan job.Event {
	merged := make(chan job.Event)

	var wg sync.WaitGroup
	for _, j := range jobs {
		events := p.runner.Run(ctx, j)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				merged <- ev
			}
		}()
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged
}

func (p *Pipeline) report(progress []int, done int) {
	if p.progress == nil || len(progress) == 0 {
		return
	}
	sum := 0
	for _, v := range progress {
		sum += v
	}
	p.progress(sum/len(progress), done, len(progress))
}

func (p *Pipeline) record(ctx context.Context, rec state.RequestRecord) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("recording request history")
	}
}
