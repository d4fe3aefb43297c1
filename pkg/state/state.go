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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/planner"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

const schemaVersion = "1.0.0"

// MaxRequests bounds the journal; the oldest requests are dropped first
const MaxRequests = 200

// ErrRequestNotFound is returned by Lookup for unknown request ids
var ErrRequestNotFound = errors.Base("request not found")

// File is the on-disk form of the history journal
type File struct {
	SchemaVersion string          `json:"schema_version"`
	LastUpdated   time.Time       `json:"last_updated"`
	Requests      []RequestRecord `json:"requests"`
}

// RequestRecord is one submitted request and how its jobs ended
type RequestRecord struct {
	Request     planner.Request `json:"request"`
	SubmittedAt time.Time       `json:"submitted_at"`
	// RetryOf is the id of the request this one re-submitted
	RetryOf string      `json:"retry_of,omitempty"`
	Error   string      `json:"error,omitempty"`
	Jobs    []JobRecord `json:"jobs"`
}

// JobRecord is the final status of one job
type JobRecord struct {
	JobID    string   `json:"job_id"`
	Input    string   `json:"input"`
	Output   string   `json:"output"`
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Uploaded []string `json:"uploaded,omitempty"`
	Kept     string   `json:"kept,omitempty"`
}

// Failed reports whether any job of the request did not fully succeed
func (r RequestRecord) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, j := range r.Jobs {
		if j.Status != "succeeded" {
			return true
		}
	}
	return false
}

// 📒 State is the request history journal
type State struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	file File

	saveMu sync.Mutex
}

// 🏭 New creates an empty journal stored at path
func New(fs afero.Fs, path string) *State {
	return &State{
		fs:   fs,
		path: path,
		file: File{SchemaVersion: schemaVersion},
	}
}

func (s *State) Path() string {
	return s.path
}

// Load reads the journal from disk. A missing file is an empty journal.
func (s *State) Load(ctx context.Context) error {
	zerolog.Ctx(ctx).Debug().Str("path", s.path).Msg("loading history")

	file, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.file = file
	s.mu.Unlock()
	return nil
}

// read decodes the journal on disk
func (s *State) read() (File, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{SchemaVersion: schemaVersion}, nil
		}
		return File{}, errors.Errorf("reading history: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, errors.Errorf("parsing history %s: %w", s.path, err)
	}
	if file.SchemaVersion != schemaVersion {
		return File{}, errors.Errorf("history %s has schema %q, want %q", s.path, file.SchemaVersion, schemaVersion)
	}
	return file, nil
}

// Save writes the journal to disk atomically
func (s *State) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.save(ctx)
}

func (s *State) save(ctx context.Context) error {
	zerolog.Ctx(ctx).Debug().Str("path", s.path).Msg("saving history")

	s.mu.Lock()
	s.file.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(s.file, "", "\t")
	s.mu.Unlock()
	if err != nil {
		return errors.Errorf("encoding history: %w", err)
	}

	if err := staging.WriteAtomic(s.fs, s.path, bytes.NewReader(data)); err != nil {
		return errors.Errorf("writing history: %w", err)
	}
	return nil
}

// merge adopts requests another process recorded since the journal was loaded.
// Requests only known in memory keep their place after the ones on disk.
func (s *State) merge(disk File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	onDisk := make(map[string]bool, len(disk.Requests))
	for _, r := range disk.Requests {
		onDisk[r.Request.ID] = true
	}
	merged := append([]RequestRecord(nil), disk.Requests...)
	for _, r := range s.file.Requests {
		if !onDisk[r.Request.ID] {
			merged = append(merged, r)
		}
	}
	s.file.Requests = merged
}

// Record appends a request to the journal and saves it. The journal on disk is
// re-read first so requests recorded by another convrt process are kept.
func (s *State) Record(ctx context.Context, rec RequestRecord) error {
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	disk, err := s.read()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("history on disk unreadable, keeping in-memory journal")
	} else {
		s.merge(disk)
	}

	s.mu.Lock()
	s.file.Requests = append(s.file.Requests, rec)
	if extra := len(s.file.Requests) - MaxRequests; extra > 0 {
		s.file.Requests = append([]RequestRecord(nil), s.file.Requests[extra:]...)
	}
	s.mu.Unlock()

	return s.save(ctx)
}

// Lookup returns the record of a request
func (s *State) Lookup(id string) (RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.file.Requests) - 1; i >= 0; i-- {
		if s.file.Requests[i].Request.ID == id {
			return s.file.Requests[i], nil
		}
	}
	return RequestRecord{}, errors.Errorf("%w: %s", ErrRequestNotFound, id)
}

// Requests returns every record, oldest first
func (s *State) Requests() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestRecord(nil), s.file.Requests...)
}
