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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/config"
	"github.com/walteh/convrt/pkg/coordinator"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/leaf"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/pipeline"
	"github.com/walteh/convrt/pkg/planner"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"github.com/walteh/convrt/pkg/state"
	"gitlab.com/tozd/go/errors"
)

func TestConvertFlags(t *testing.T) {
	cmd := NewConvertCmd(&opts.RootOpts{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--op", "resize_image",
		"-o", "size=800x600",
		"--option", "quality=80",
		"--batch",
		"--include", "*.png",
		"--dest", "/out",
	}))

	op, err := cmd.Flags().GetString("op")
	require.NoError(t, err)
	assert.Equal(t, "resize_image", op)

	options, err := cmd.Flags().GetStringToString("option")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"size": "800x600", "quality": "80"}, options)

	assert.Contains(t, cmd.Aliases, "edit")
}

func TestConvertRequest(t *testing.T) {
	f := &convertFlags{
		op:      "merge_videos",
		options: map[string]string{"a": "1"},
		remote:  true,
		dest:    "folder-1",
		name:    "joined.mp4",
	}

	got := f.request([]string{"id-2", "id-1"})
	assert.Equal(t, planner.Request{
		Operation:   operation.MergeVideos,
		Sources:     []string{"id-2", "id-1"},
		Destination: "folder-1",
		OutputName:  "joined.mp4",
		Options:     map[string]string{"a": "1"},
		Remote:      true,
	}, got)
}

func TestDescribe(t *testing.T) {
	reg, err := operation.NewDefaultRegistry(leaf.NewToolchain(leaf.Tools{}))
	require.NoError(t, err)

	resize, err := reg.Lookup(operation.ResizeImage)
	require.NoError(t, err)
	assert.Equal(t, "same extension", describeOutput(resize))
	assert.Equal(t, "one", describeInputs(resize))
	assert.Equal(t, "size (AxB)", describeOptions(resize))

	merge, err := reg.Lookup(operation.MergeVideos)
	require.NoError(t, err)
	assert.Equal(t, "many", describeInputs(merge))

	frames, err := reg.Lookup(operation.ExtractFrames)
	require.NoError(t, err)
	assert.Equal(t, "directory", describeOutput(frames))
	assert.Equal(t, "frame_times (number list)? fps (number)?", describeOptions(frames))

	word, err := reg.Lookup(operation.WordToPDF)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", describeOutput(word))
}

func TestRequireSession(t *testing.T) {
	o := &opts.RootOpts{}
	tests := []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{name: "auth", cmd: NewAuthCmd(o), args: []string{}},
		{name: "ls", cmd: NewLsCmd(o), args: []string{"folder"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.SilenceUsage = true
			tt.cmd.SilenceErrors = true
			tt.cmd.SetArgs(tt.args)
			err := tt.cmd.Execute()
			assert.True(t, errors.Is(err, remote.ErrAuthRequired), "should require a configured remote")
		})
	}
}

func TestRequestStatus(t *testing.T) {
	ok := state.RequestRecord{Jobs: []state.JobRecord{{Status: "succeeded"}}}
	failed := state.RequestRecord{Jobs: []state.JobRecord{{Status: "upload failed"}}}
	rejected := state.RequestRecord{Error: "unknown operation"}

	assert.Contains(t, requestStatus(ok), "succeeded")
	assert.Contains(t, requestStatus(failed), "failed")
	assert.Contains(t, requestStatus(rejected), "rejected")

	recs := []state.RequestRecord{ok, failed, rejected}
	for i := range recs {
		recs[i].SubmittedAt = time.Unix(int64(i), 0)
	}
	assert.NoError(t, renderRequests(recs, 2, false))
	assert.NoError(t, renderRequests(recs, 0, true))
	assert.NoError(t, renderRequests(nil, 20, false))
	assert.NoError(t, renderJobs(failed))
	assert.NoError(t, renderJobs(rejected))
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	ok := job.New(operation.WordToPDF, job.LocalPath("/in/a.docx"), job.LocalPath("/out/a_converted.pdf"), job.LocalPath("/out"), nil)
	kept := job.New(operation.WordToPDF, job.RemoteID("obj-1"), job.LocalPath("/stage/x/b_converted.pdf"), job.RemoteID("folder"), nil)
	kept.Names = []string{"b.docx"}

	tests := []struct {
		name    string
		reports []coordinator.Report
		want    []string
	}{
		{
			name:    "all_succeeded",
			reports: []coordinator.Report{{Job: ok, Status: coordinator.StatusSucceeded}},
			want:    []string{"✅ Conversion successful!"},
		},
		{
			name: "upload_failed",
			reports: []coordinator.Report{
				{Job: ok, Status: coordinator.StatusSucceeded},
				{Job: kept, Status: coordinator.StatusUploadFailed, Err: errors.New("quota"), Kept: "/stage/x/b_converted.pdf"},
			},
			want: []string{
				"⚠️  b.docx: output kept at /stage/x/b_converted.pdf",
				"❌ 1 of 2 job(s) succeeded, 1 upload(s) failed (request req-1)",
				"ℹ️  retry with: convrt retry req-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			printSummary(log.New(buf, zerolog.Disabled), &pipeline.Summary{
				Request: planner.Request{ID: "req-1"},
				Reports: tt.reports,
			})

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			require.Len(t, lines, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, string(bytes.TrimSpace(lines[i])))
			}
		})
	}
}

func TestRunRequestRejected(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	fs := afero.NewMemMapFs()
	buf := &bytes.Buffer{}
	o := &opts.RootOpts{
		Config: config.Default(),
		Fs:     fs,
		Logger: log.New(buf, zerolog.Disabled),
		Area:   staging.NewArea(fs, "/stage"),
	}
	ctx := log.NewContext(context.Background(), o.Logger)

	rejected := errors.New("unknown operation")
	err := runRequest(ctx, o, "word_to_pdf on 1 source(s)", func(p *pipeline.Pipeline) (*pipeline.Summary, error) {
		require.NotNil(t, p)
		return nil, rejected
	})

	assert.ErrorIs(t, err, rejected)
	assert.Contains(t, buf.String(), "convrt • word_to_pdf on 1 source(s)")
	assert.NotContains(t, buf.String(), "retry with", "a rejected request has no summary")
}
