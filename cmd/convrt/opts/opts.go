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

package opts

import (
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/config"
	"github.com/walteh/convrt/pkg/coordinator"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/pipeline"
	"github.com/walteh/convrt/pkg/planner"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/runner"
	"github.com/walteh/convrt/pkg/staging"
	"github.com/walteh/convrt/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared dependencies used by all commands.
// It is filled in by the root command before any subcommand runs.
type RootOpts struct {
	Config   *config.Config
	Fs       afero.Fs
	Logger   *log.Logger
	Registry *operation.Registry
	Area     *staging.Area
	History  *state.State
	// Session is nil when no remote is configured
	Session *remote.Session
}

// RequireSession returns the remote session or an ErrAuthRequired error
func (o *RootOpts) RequireSession() (*remote.Session, error) {
	if o.Session == nil {
		return nil, errors.Errorf("%w: add a remote section to the config file", remote.ErrAuthRequired)
	}
	return o.Session, nil
}

// 🏭 Pipeline assembles planner, runner and coordinator over the shared dependencies
func (o *RootOpts) Pipeline(progress pipeline.ProgressFunc) *pipeline.Pipeline {
	var (
		plannerOpts     []planner.Option
		runnerOpts      = []runner.Option{runner.WithMaxParallel(o.Config.MaxParallel)}
		coordinatorOpts []coordinator.Option
	)
	if o.Session != nil {
		plannerOpts = append(plannerOpts, planner.WithLister(o.Session))
		runnerOpts = append(runnerOpts, runner.WithDownloader(o.Session))
		coordinatorOpts = append(coordinatorOpts, coordinator.WithUploader(o.Session))
	}

	pipelineOpts := []pipeline.Option{pipeline.WithHistory(o.History)}
	if progress != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithProgress(progress))
	}

	return pipeline.New(
		planner.New(o.Registry, o.Area, o.Fs, plannerOpts...),
		runner.New(o.Registry, o.Area, runnerOpts...),
		coordinator.New(o.Logger, o.Area, coordinatorOpts...),
		o.Logger,
		pipelineOpts...,
	)
}
