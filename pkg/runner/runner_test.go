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
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/remote/fsstore"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

const (
	opPanic   operation.ID = "test_panic"
	opFail    operation.ID = "test_fail"
	opOK      operation.ID = "test_ok"
	opCollect operation.ID = "test_collect"
)

type collected struct {
	mu     sync.Mutex
	inputs [][]string
	output []string
	opts   []operation.OptionBag
}

func (c *collected) leaf(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, inputs)
	c.output = append(c.output, output)
	c.opts = append(c.opts, opts)
	return nil
}

func testRegistry(t *testing.T, extra ...operation.Spec) (*operation.Registry, *collected) {
	t.Helper()
	c := &collected{}
	table := []operation.Spec{
		{ID: opPanic, Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
			panic("boom")
		}},
		{ID: opFail, Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
			return errors.New("ffmpeg exited with code 1: invalid data")
		}},
		{ID: opOK, Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
			return nil
		}},
		{ID: opCollect, Leaf: c.leaf},
	}
	reg, err := operation.NewRegistry(append(table, extra...))
	require.NoError(t, err, "building test registry should succeed")
	return reg, c
}

func testContext() context.Context {
	logger := zerolog.New(io.Discard)
	return logger.WithContext(context.Background())
}

func drain(events <-chan job.Event) (progress []int, terminal []job.Event) {
	for ev := range events {
		if ev.Terminal {
			terminal = append(terminal, ev)
		} else {
			progress = append(progress, ev.Progress)
		}
	}
	return progress, terminal
}

func localJob(op operation.ID, inputs ...string) *job.Job {
	return job.New(op, job.LocalPath(inputs...), job.LocalPath("/out/result"), job.LocalPath("/out"), operation.OptionBag{"speed_factor": 2.0})
}

func TestRunSuccess(t *testing.T) {
	reg, c := testRegistry(t)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))

	j := localJob(opCollect, "/in/a.mp4")
	progress, terminal := drain(r.Run(testContext(), j))

	require.Len(t, terminal, 1, "exactly one terminal event")
	assert.True(t, terminal[0].Succeeded())
	assert.Equal(t, "Conversion successful!", terminal[0].Message())
	assert.Equal(t, []int{ProgressStarted, ProgressRunning}, progress)

	state, _ := j.State()
	assert.Equal(t, job.Succeeded, state)
	assert.Equal(t, [][]string{{"/in/a.mp4"}}, c.inputs)
	assert.Equal(t, []string{"/out/result"}, c.output)
}

func TestLeafGetsOwnOptionCopy(t *testing.T) {
	mutate := operation.Spec{ID: "test_mutate", Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
		opts["speed_factor"] = 99.0
		return nil
	}}
	reg, _ := testRegistry(t, mutate)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))

	j := localJob("test_mutate", "/in/a.mp4")
	drain(r.Run(testContext(), j))

	assert.Equal(t, 2.0, j.Options.Float("speed_factor"), "the job's option snapshot should not be modified by the leaf")
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name        string
		op          operation.ID
		wantIs      error
		errContains string
	}{
		{name: "panicking_leaf", op: opPanic, wantIs: job.ErrConversion, errContains: "panic: boom"},
		{name: "failing_leaf", op: opFail, wantIs: job.ErrConversion, errContains: "invalid data"},
		{name: "unknown_operation", op: "not_registered", wantIs: operation.ErrUnknownOperation, errContains: "not_registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := testRegistry(t)
			r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))

			j := localJob(tt.op, "/in/a.mp4")
			var events <-chan job.Event
			require.NotPanics(t, func() {
				events = r.Run(testContext(), j)
			})
			_, terminal := drain(events)

			require.Len(t, terminal, 1, "exactly one terminal event")
			ev := terminal[0]
			require.Error(t, ev.Err)
			assert.True(t, errors.Is(ev.Err, tt.wantIs), "error should match %v, got %v", tt.wantIs, ev.Err)
			assert.Contains(t, ev.Message(), tt.errContains)
			assert.Contains(t, ev.Message(), "Error: ")

			state, reason := j.State()
			assert.Equal(t, job.Failed, state)
			assert.Equal(t, ev.Message(), reason)
		})
	}
}

func TestFailureDoesNotAffectSiblings(t *testing.T) {
	reg, _ := testRegistry(t)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))
	ctx := testContext()

	jobs := []*job.Job{
		localJob(opPanic, "/in/1"),
		localJob(opOK, "/in/2"),
		localJob(opFail, "/in/3"),
		localJob(opOK, "/in/4"),
	}
	channels := make([]<-chan job.Event, len(jobs))
	for i, j := range jobs {
		channels[i] = r.Run(ctx, j)
	}

	want := []bool{false, true, false, true}
	for i, ch := range channels {
		_, terminal := drain(ch)
		require.Len(t, terminal, 1)
		assert.Equal(t, want[i], terminal[0].Succeeded(), "job %d", i)
	}
	r.Wait()
}

func TestRunTwice(t *testing.T) {
	reg, c := testRegistry(t)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))

	j := localJob(opCollect, "/in/a.mp4")
	_, first := drain(r.Run(testContext(), j))
	_, second := drain(r.Run(testContext(), j))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.True(t, first[0].Succeeded())
	assert.True(t, errors.Is(second[0].Err, job.ErrAlreadyStarted))

	state, _ := j.State()
	assert.Equal(t, job.Succeeded, state, "the second run should not touch the job state")
	assert.Len(t, c.inputs, 1, "the leaf should run once")
}

func TestMaxParallel(t *testing.T) {
	var running, peak atomic.Int32
	slow := operation.Spec{ID: "test_slow", Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}}
	reg, _ := testRegistry(t, slow)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"), WithMaxParallel(2))

	var channels []<-chan job.Event
	for i := 0; i < 6; i++ {
		channels = append(channels, r.Run(testContext(), localJob("test_slow", "/in/x")))
	}
	for _, ch := range channels {
		_, terminal := drain(ch)
		require.Len(t, terminal, 1)
		assert.True(t, terminal[0].Succeeded())
	}

	assert.LessOrEqual(t, peak.Load(), int32(2), "no more than two leaves should run at once")
}

func remoteFixture(t *testing.T) (afero.Fs, *staging.Area, *remote.Session) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/share/inbox/a.mp4", []byte("video-a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/share/inbox/b.mp4", []byte("video-b"), 0o644))
	return fs, staging.NewArea(fs, "/stage"), remote.NewSession(fsstore.New(fs, "/share"), fs)
}

func TestRemoteInputsAreStaged(t *testing.T) {
	fs, area, session := remoteFixture(t)

	var seen []string
	read := operation.Spec{ID: "test_read", Leaf: func(ctx context.Context, inputs []string, output string, opts operation.OptionBag) error {
		for _, in := range inputs {
			data, err := afero.ReadFile(fs, in)
			if err != nil {
				return err
			}
			seen = append(seen, string(data))
		}
		return nil
	}}
	reg, _ := testRegistry(t, read)
	r := New(reg, area, WithDownloader(session))

	j := job.New("test_read", job.RemoteID("inbox/a.mp4", "inbox/b.mp4"), job.LocalPath("/stage/out.mp4"), job.RemoteID("inbox"), nil)
	progress, terminal := drain(r.Run(testContext(), j))

	require.Len(t, terminal, 1)
	require.NoError(t, terminal[0].Err)
	assert.Equal(t, []int{ProgressStarted, ProgressStaging, ProgressRunning}, progress)
	assert.Equal(t, []string{"video-a", "video-b"}, seen, "inputs should be staged in selection order")

	staged := j.Staged()
	require.Len(t, staged, 2)
	assert.Equal(t, area.Locate(j.ID, "000_a.mp4"), staged[0].Path())
	assert.Equal(t, area.Locate(j.ID, "001_b.mp4"), staged[1].Path())
}

func TestRemoteDownloadFailure(t *testing.T) {
	_, area, session := remoteFixture(t)
	reg, c := testRegistry(t)
	r := New(reg, area, WithDownloader(session))

	j := job.New(opCollect, job.RemoteID("inbox/missing.mp4"), job.LocalPath("/stage/out.mp3"), job.RemoteID("inbox"), nil)
	_, terminal := drain(r.Run(testContext(), j))

	require.Len(t, terminal, 1)
	assert.True(t, errors.Is(terminal[0].Err, remote.ErrRemote))
	assert.True(t, errors.Is(terminal[0].Err, remote.ErrNotFound))
	assert.Empty(t, c.inputs, "the leaf should not run without its input")
	assert.Len(t, j.Staged(), 1, "the attempted staging path is still owned by the job")
}

func TestRemoteWithoutSession(t *testing.T) {
	reg, _ := testRegistry(t)
	r := New(reg, staging.NewArea(afero.NewMemMapFs(), "/stage"))

	j := job.New(opCollect, job.RemoteID("inbox/a.mp4"), job.LocalPath("/stage/out.mp3"), job.RemoteID("inbox"), nil)
	_, terminal := drain(r.Run(testContext(), j))

	require.Len(t, terminal, 1)
	assert.True(t, errors.Is(terminal[0].Err, remote.ErrAuthRequired))
}
