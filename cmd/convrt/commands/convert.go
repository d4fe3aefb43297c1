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

package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/pipeline"
	"github.com/walteh/convrt/pkg/planner"
	"gitlab.com/tozd/go/errors"
)

// ErrJobsFailed is returned when a request finished with at least one failed job
var ErrJobsFailed = errors.Base("some jobs failed")

type convertFlags struct {
	op      string
	options map[string]string
	batch   bool
	remote  bool
	include string
	dest    string
	name    string
}

func (f *convertFlags) request(sources []string) planner.Request {
	return planner.Request{
		Operation:   operation.ID(f.op),
		Sources:     sources,
		Destination: f.dest,
		OutputName:  f.name,
		Options:     f.options,
		Batch:       f.batch,
		Remote:      f.remote,
		Include:     f.include,
	}
}

// NewConvertCmd creates the convert command
func NewConvertCmd(opts *opts.RootOpts) *cobra.Command {
	flags := &convertFlags{}

	cmd := &cobra.Command{
		Use:     "convert [flags] <source>...",
		Aliases: []string{"edit"},
		Short:   "Run an operation on local files or remote objects",
		Long: `Convert runs one operation over the selected sources.
It will:
1. Plan one job per input (or one job for many-to-one operations)
2. Stage remote inputs into the staging area
3. Run every job concurrently
4. Upload remote outputs and clean up staged files`,
		Example: `  convrt convert --op word_to_pdf report.docx
  convrt convert --op resize_image -o size=800x600 --batch --include '*.png' ./photos
  convrt convert --op avi_to_mp4 --remote --batch --dest <folder-id> <folder-id>`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "convert").Logger().WithContext(cmd.Context())
			return runRequest(ctx, opts, fmt.Sprintf("%s on %d source(s)", flags.op, len(args)), func(p *pipeline.Pipeline) (*pipeline.Summary, error) {
				return p.Submit(ctx, flags.request(args))
			})
		},
	}

	cmd.Flags().StringVar(&flags.op, "op", "", "operation id (see 'convrt ops')")
	cmd.Flags().StringToStringVarP(&flags.options, "option", "o", nil, "operation option as key=value, repeatable")
	cmd.Flags().BoolVar(&flags.batch, "batch", false, "treat the source as a directory or container and convert every file in it")
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "sources and destination are remote object ids")
	cmd.Flags().StringVar(&flags.include, "include", "", "glob filter applied to batch listings")
	cmd.Flags().StringVar(&flags.dest, "dest", "", "destination directory, container id, or many-to-one output path")
	cmd.Flags().StringVar(&flags.name, "name", "", "output name of a remote many-to-one operation")
	_ = cmd.MarkFlagRequired("op")

	return cmd
}

// runRequest drives one pipeline request behind a progress bar and prints the final status
func runRequest(ctx context.Context, opts *opts.RootOpts, title string, submit func(p *pipeline.Pipeline) (*pipeline.Summary, error)) error {
	logger := log.FromContext(ctx)
	logger.Header(title)

	bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle("Converting").WithRemoveWhenDone(true).Start()
	if err != nil {
		return errors.Errorf("starting progress bar: %w", err)
	}

	shown := 0
	progress := func(percent, done, total int) {
		bar.UpdateTitle(fmt.Sprintf("Converting (%d/%d)", done, total))
		if percent > shown {
			bar.Add(percent - shown)
			shown = percent
		}
	}

	summary, err := submit(opts.Pipeline(progress))
	_, _ = bar.Stop()
	if err != nil {
		return err
	}

	logger.LogNewline()
	printSummary(logger, summary)

	if summary.Succeeded() < len(summary.Reports) {
		return errors.Errorf("%w: request %s", ErrJobsFailed, summary.Request.ID)
	}
	return nil
}

func printSummary(logger *log.Logger, summary *pipeline.Summary) {
	for _, r := range summary.Reports {
		if r.Kept != "" {
			logger.Warningf("%s: output kept at %s", r.Job.DisplayName(), r.Kept)
		}
	}
	if summary.Succeeded() == len(summary.Reports) {
		logger.Success(summary.Message())
		return
	}
	logger.Errorf("%s (request %s)", summary.Message(), summary.Request.ID)
	logger.Infof("retry with: convrt retry %s", summary.Request.ID)
}
