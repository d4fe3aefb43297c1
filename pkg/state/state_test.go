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

package state

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/planner"
	"gitlab.com/tozd/go/errors"
)

func setupTestLogger(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func record(id string, statuses ...string) RequestRecord {
	rec := RequestRecord{Request: planner.Request{ID: id, Operation: operation.WordToPDF, Sources: []string{"a.docx"}}}
	for i, s := range statuses {
		rec.Jobs = append(rec.Jobs, JobRecord{JobID: fmt.Sprintf("%s-%d", id, i), Status: s})
	}
	return rec
}

func TestLoadAndSave(t *testing.T) {
	ctx := setupTestLogger(t)

	t.Run("load_nonexistent_creates_clean", func(t *testing.T) {
		s := New(afero.NewMemMapFs(), "/home/.convrt/history.json")
		require.NoError(t, s.Load(ctx), "loading a missing journal")
		assert.Empty(t, s.Requests())
	})

	t.Run("save_and_load", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s := New(fs, "/home/.convrt/history.json")
		rec := record("req-1", "succeeded", "conversion failed")
		rec.Request.Options = map[string]string{"quality": "80"}
		rec.Jobs[1].Message = "Error: word_to_pdf: boom"
		require.NoError(t, s.Record(ctx, rec), "recording a request")

		s2 := New(fs, "/home/.convrt/history.json")
		require.NoError(t, s2.Load(ctx), "loading saved journal")

		got := s2.Requests()
		require.Len(t, got, 1)
		assert.Equal(t, rec.Request, got[0].Request)
		assert.Equal(t, rec.Jobs, got[0].Jobs)
		assert.False(t, got[0].SubmittedAt.IsZero(), "submission time should be set")
	})

	t.Run("rejects_other_schema", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/h.json", []byte(`{"schema_version":"0.1.0","requests":[]}`), 0o644))
		assert.Error(t, New(fs, "/h.json").Load(ctx))
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/h.json", []byte(`not json`), 0o644))
		assert.Error(t, New(fs, "/h.json").Load(ctx))
	})
}

func TestLookup(t *testing.T) {
	ctx := setupTestLogger(t)
	s := New(afero.NewMemMapFs(), "/h.json")
	require.NoError(t, s.Record(ctx, record("req-1", "succeeded")))
	require.NoError(t, s.Record(ctx, record("req-2", "upload failed")))

	got, err := s.Lookup("req-2")
	require.NoError(t, err)
	assert.Equal(t, "req-2", got.Request.ID)
	assert.True(t, got.Failed())

	_, err = s.Lookup("req-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestNotFound))
}

func TestJournalIsBounded(t *testing.T) {
	ctx := setupTestLogger(t)
	s := New(afero.NewMemMapFs(), "/h.json")
	for i := 0; i < MaxRequests+5; i++ {
		require.NoError(t, s.Record(ctx, record(fmt.Sprintf("req-%d", i), "succeeded")))
	}

	got := s.Requests()
	require.Len(t, got, MaxRequests)
	assert.Equal(t, "req-5", got[0].Request.ID, "oldest requests are dropped first")
}

func TestRecordKeepsOtherProcessRequests(t *testing.T) {
	ctx := setupTestLogger(t)
	fs := afero.NewMemMapFs()

	first := New(fs, "/h.json")
	second := New(fs, "/h.json")
	require.NoError(t, first.Load(ctx))
	require.NoError(t, second.Load(ctx))

	require.NoError(t, first.Record(ctx, record("req-a", "succeeded")))
	require.NoError(t, second.Record(ctx, record("req-b", "succeeded")))
	require.NoError(t, first.Record(ctx, record("req-c", "conversion failed")))

	reread := New(fs, "/h.json")
	require.NoError(t, reread.Load(ctx))

	var ids []string
	for _, r := range reread.Requests() {
		ids = append(ids, r.Request.ID)
	}
	assert.Equal(t, []string{"req-a", "req-b", "req-c"}, ids, "no process drops the other's requests")

	_, err := first.Lookup("req-b")
	assert.NoError(t, err, "recording refreshes the in-memory journal")
}

func TestRecordWithUnreadableJournal(t *testing.T) {
	ctx := setupTestLogger(t)
	fs := afero.NewMemMapFs()
	s := New(fs, "/h.json")
	require.NoError(t, afero.WriteFile(fs, "/h.json", []byte(`not json`), 0o644))

	require.NoError(t, s.Record(ctx, record("req-1", "succeeded")), "a corrupt journal is replaced")

	reread := New(fs, "/h.json")
	require.NoError(t, reread.Load(ctx))
	assert.Len(t, reread.Requests(), 1)
}

func TestFailed(t *testing.T) {
	assert.False(t, record("a", "succeeded", "succeeded").Failed())
	assert.True(t, record("b", "succeeded", "upload failed").Failed())
	assert.True(t, RequestRecord{Error: "unknown operation"}.Failed())
}
