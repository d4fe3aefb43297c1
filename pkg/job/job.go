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

package job

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

// ErrConversion matches every *ConversionError
var ErrConversion = errors.Base("conversion failed")

// ❌ ConversionError reports a failed leaf transformation
type ConversionError struct {
	Operation operation.ID
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// 📍 LocatorKind discriminates local paths from remote ids
type LocatorKind int

const (
	Local LocatorKind = iota
	Remote
)

func (k LocatorKind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// 📍 Locator addresses an input or output. Paths holds one entry except for
// the composite input of a many-to-one job, which keeps selection order.
type Locator struct {
	Kind  LocatorKind
	Paths []string
}

// LocalPath builds a local locator; several paths form a composite input
func LocalPath(paths ...string) Locator {
	return Locator{Kind: Local, Paths: append([]string(nil), paths...)}
}

// RemoteID builds a remote locator for an object or container id
func RemoteID(ids ...string) Locator {
	return Locator{Kind: Remote, Paths: append([]string(nil), ids...)}
}

func (l Locator) IsRemote() bool {
	return l.Kind == Remote
}

// Path returns the single path or id of a non-composite locator
func (l Locator) Path() string {
	if len(l.Paths) == 0 {
		return ""
	}
	return l.Paths[0]
}

func (l Locator) String() string {
	return fmt.Sprintf("%s(%s)", l.Kind, strings.Join(l.Paths, ", "))
}

// 🔄 State is the execution state of a Job
type State int

const (
	Pending State = iota
	Staging
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Staging:
		return "staging"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// 📋 Job is one unit of work. The description fields are fixed at creation;
// only the execution state changes, and only through the runner.
type Job struct {
	ID        string
	Operation operation.ID
	Input     Locator
	// Output is where the leaf writes. For remote destinations it is a staged local path.
	Output Locator
	// Destination is the logical destination; Remote(container) when the output is uploaded.
	Destination Locator
	Options     operation.OptionBag
	// Names holds display names for Input.Paths, resolved for remote objects
	Names []string

	mu      sync.Mutex
	started bool
	state   State
	reason  string
	staged  []*staging.File
}

// 🏭 New creates a pending job with a fresh id
func New(op operation.ID, input, output, destination Locator, opts operation.OptionBag) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Operation:   op,
		Input:       input,
		Output:      output,
		Destination: destination,
		Options:     opts,
	}
}

// State returns the current state and, for Failed, the reason
func (j *Job) State() (State, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.reason
}

// ErrAlreadyStarted is returned when a job is run a second time
var ErrAlreadyStarted = errors.Base("job already started")

// Start claims the job for a single run. Only the first call succeeds.
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return errors.Errorf("%w: %s", ErrAlreadyStarted, j.ID)
	}
	j.started = true
	return nil
}

// Transition moves the job strictly forward. Terminal states are final.
func (j *Job) Transition(to State, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state.Terminal() {
		return errors.Errorf("job %s is already %s", j.ID, j.state)
	}
	if to <= j.state {
		return errors.Errorf("job %s cannot move from %s to %s", j.ID, j.state, to)
	}
	j.state = to
	if to == Failed {
		j.reason = reason
	}
	return nil
}

// AddStaged records a staged input owned by this job
func (j *Job) AddStaged(f *staging.File) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.staged = append(j.staged, f)
}

// Staged returns the staged inputs owned by this job
func (j *Job) Staged() []*staging.File {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*staging.File(nil), j.staged...)
}

// DisplayName is the name shown in the log for this job's input
func (j *Job) DisplayName() string {
	names := j.Names
	if len(names) == 0 {
		names = make([]string, 0, len(j.Input.Paths))
		for _, p := range j.Input.Paths {
			names = append(names, filepath.Base(p))
		}
	}
	if len(names) > 1 {
		return fmt.Sprintf("%s (+%d)", names[0], len(names)-1)
	}
	if len(names) == 1 {
		return names[0]
	}
	return j.ID
}

// 📣 Message texts shown for terminal events
const SuccessMessage = "Conversion successful!"

// ErrorMessage renders a failure the way the visible log shows it
func ErrorMessage(err error) string {
	return "Error: " + err.Error()
}

// 📨 Event is sent from a job's worker to the foreground. Exactly one Terminal
// event is sent per run; Err is nil on success.
type Event struct {
	Job      *Job
	Progress int
	Terminal bool
	Err      error
}

// Message is the human readable text of a terminal event
func (e Event) Message() string {
	if !e.Terminal {
		return fmt.Sprintf("%d%%", e.Progress)
	}
	if e.Err != nil {
		return ErrorMessage(e.Err)
	}
	return SuccessMessage
}

// Succeeded reports a terminal success
func (e Event) Succeeded() bool {
	return e.Terminal && e.Err == nil
}
