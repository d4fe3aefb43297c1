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

package log

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_job_success",
			op: func(t *testing.T, logger *Logger) {
				logger.LogJob(context.Background(), JobEntry{
					JobID:     "job-1",
					Input:     "report.docx",
					Output:    "out/report_converted.pdf",
					Operation: "word_to_pdf",
					Message:   "Conversion successful!",
					Succeeded: true,
				})
			},
			wantLogs: []string{
				"✓ report.docx                         word_to_pdf            Conversion successful!",
			},
		},
		{
			name: "log_request_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartRequest(context.Background(), RequestOperation{
					ID:        "req-1",
					Operation: "mp4_to_mp3",
					Jobs:      3,
					Remote:    true,
					Batch:     true,
				})
			},
			wantLogs: []string{
				"◆ mp4_to_mp3 • 3 job(s), remote",
			},
		},
		{
			name: "request_summary_success",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("mp4_to_mp3 on 3 source(s)")
				logger.LogNewline()
				logger.Success("3 of 3 job(s) succeeded")
			},
			wantLogs: []string{
				"convrt • mp4_to_mp3 on 3 source(s)",
				"",
				"",
				"✅ 3 of 3 job(s) succeeded",
			},
		},
		{
			name: "request_summary_failure",
			op: func(t *testing.T, logger *Logger) {
				logger.Warningf("%s: output kept at %s", "clip.avi", "/stage/j1/clip_converted.mp4")
				logger.Errorf("%s (request %s)", "1 of 2 job(s) succeeded, 1 upload(s) failed", "req-7")
				logger.Infof("retry with: convrt retry %s", "req-7")
			},
			wantLogs: []string{
				"⚠️  clip.avi: output kept at /stage/j1/clip_converted.mp4",
				"❌ 1 of 2 job(s) succeeded, 1 upload(s) failed (request req-7)",
				"ℹ️  retry with: convrt retry req-7",
			},
		},
		{
			name: "authenticated",
			op: func(t *testing.T, logger *Logger) {
				logger.Successf("Authenticated with %s", "gdrive")
			},
			wantLogs: []string{
				"✅ Authenticated with gdrive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create buffer for console output
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Disabled)

			// Perform operation
			tt.op(t, logger)

			// Check output
			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	logger := New(io.Discard, zerolog.InfoLevel)
	ctx := NewContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx), "commands share the root logger through ctx")
	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "a command run without the root pre-run has no logger")
}

func TestJobEntryFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name  string
		entry JobEntry
		want  string
	}{
		{
			name:  "converted",
			entry: JobEntry{Input: "a.txt", Operation: "txt_to_word", Message: "Conversion successful!", Succeeded: true},
			want:  "    ✓ a.txt                               txt_to_word            Conversion successful!",
		},
		{
			name:  "conversion_failed",
			entry: JobEntry{Input: "a.txt", Operation: "txt_to_word", Message: "Error: boom"},
			want:  "    ✗ a.txt                               txt_to_word            Error: boom",
		},
		{
			name:  "uploaded",
			entry: JobEntry{Input: "a.txt", Operation: "txt_to_word", Message: "Conversion successful!", Succeeded: true, Uploaded: true},
			want:  "    ⇡ a.txt                               txt_to_word            Conversion successful!",
		},
		{
			name:  "upload_failed",
			entry: JobEntry{Input: "a.txt", Operation: "txt_to_word", Message: "Conversion successful!", Succeeded: true, UploadFailed: true},
			want:  "    ⚠ a.txt                               txt_to_word            Conversion successful!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Disabled)

			logger.LogJob(context.Background(), tt.entry)

			output := strings.TrimRight(buf.String(), "\n")
			assert.Equal(t, tt.want, strings.TrimRight(output, " "), "formatted output should match")
		})
	}
}

func TestEndRequestReturnsEntries(t *testing.T) {
	logger := New(io.Discard, zerolog.Disabled)
	ctx := context.Background()

	assert.Nil(t, logger.EndRequest(ctx), "no request in progress")

	logger.StartRequest(ctx, RequestOperation{ID: "r", Operation: "json_to_yaml", Jobs: 2})
	logger.LogJob(ctx, JobEntry{JobID: "1", Succeeded: true})
	logger.LogJob(ctx, JobEntry{JobID: "2"})

	entries := logger.EndRequest(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].JobID)
	assert.Nil(t, logger.EndRequest(ctx), "request should be closed")
}
