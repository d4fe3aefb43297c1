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

package staging

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestPathsArePerJob(t *testing.T) {
	area := NewArea(afero.NewMemMapFs(), "/stage")

	a, err := area.Path("job-1", "report.docx")
	require.NoError(t, err)
	b, err := area.Path("job-2", "report.docx")
	require.NoError(t, err)

	assert.Equal(t, "/stage/job-1/report.docx", a)
	assert.Equal(t, "/stage/job-2/report.docx", b)
	assert.NotEqual(t, a, b, "same object name in two jobs should not collide")

	exists, err := afero.DirExists(area.Fs(), "/stage/job-1")
	require.NoError(t, err)
	assert.True(t, exists, "job directory should be created")

	assert.Equal(t, "/stage/job-3/out.pdf", area.Locate("job-3", "out.pdf"))
	exists, err = afero.DirExists(area.Fs(), "/stage/job-3")
	require.NoError(t, err)
	assert.False(t, exists, "locate should not touch the filesystem")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "a.txt", want: "a.txt"},
		{name: "traversal", in: "../../etc/passwd", want: "passwd"},
		{name: "colon", in: "c:report.pdf", want: "c_report.pdf"},
		{name: "empty", in: "", want: "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}

func TestWriteAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("writes_and_overwrites", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/stage/a.txt", []byte("old content"), 0o644))
		require.NoError(t, WriteAtomic(fs, "/stage/a.txt", strings.NewReader("new")))

		data, err := afero.ReadFile(fs, "/stage/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "new", string(data), "existing file should be overwritten")

		exists, _ := afero.Exists(fs, "/stage/a.txt.part")
		assert.False(t, exists, "temp file should be gone")
	})

	t.Run("failed_copy_leaves_nothing", func(t *testing.T) {
		err := WriteAtomic(fs, "/stage/b.txt", io.MultiReader(strings.NewReader("partial"), failingReader{}))
		require.Error(t, err)

		exists, _ := afero.Exists(fs, "/stage/b.txt")
		assert.False(t, exists, "destination should not exist")
		exists, _ = afero.Exists(fs, "/stage/b.txt.part")
		assert.False(t, exists, "partial bytes should be discarded")
	})
}

func TestFileRemoveExactlyOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	area := NewArea(fs, "/stage")
	path, err := area.Path("job", "in.mp4")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, []byte("x"), 0o644))

	f := area.Track(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.Remove())
		}()
	}
	wg.Wait()

	assert.True(t, f.Removed(), "file should be marked removed")
	exists, _ := afero.Exists(fs, path)
	assert.False(t, exists, "file should be deleted")

	// recreate the path: a second Remove must not delete it again
	require.NoError(t, afero.WriteFile(fs, path, []byte("y"), 0o644))
	require.NoError(t, f.Remove())
	exists, _ = afero.Exists(fs, path)
	assert.True(t, exists, "second Remove should not touch the filesystem")
}

func TestFileRemoveFailureIsSticky(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/stage/job/in.mp4", []byte("x"), 0o644))

	area := NewArea(afero.NewReadOnlyFs(base), "/stage")
	f := area.Track("/stage/job/in.mp4")

	err := f.Remove()
	require.Error(t, err, "read-only fs should refuse removal")
	assert.False(t, f.Removed())
	assert.Equal(t, err, f.Remove(), "later calls should return the first error")
}

func TestReleaseJob(t *testing.T) {
	fs := afero.NewMemMapFs()
	area := NewArea(fs, "/stage")

	_, err := area.JobDir("empty")
	require.NoError(t, err)
	path, err := area.Path("busy", "out.pdf")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, []byte("x"), 0o644))

	area.ReleaseJob(context.Background(), "empty")
	area.ReleaseJob(context.Background(), "busy")

	exists, _ := afero.DirExists(fs, "/stage/empty")
	assert.False(t, exists, "empty job directory should be removed")
	exists, _ = afero.DirExists(fs, "/stage/busy")
	assert.True(t, exists, "job directory holding a kept output should stay")
}
