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

package planner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/job"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
)

// Suffix is appended to the base name of every derived output
const Suffix = "_converted"

// ErrNoInputs is returned when a request selects nothing
var ErrNoInputs = errors.Base("no inputs selected")

// 📝 Request is one user action
type Request struct {
	ID        string       `json:"id"`
	Operation operation.ID `json:"operation"`
	// Sources are file paths or object ids. In batch mode the single source is a directory or container.
	Sources []string `json:"sources"`
	// Destination is a directory, a container id in remote mode, or the verbatim
	// output path of a local many-to-one operation
	Destination string `json:"destination,omitempty"`
	// OutputName names the output of a remote many-to-one operation
	OutputName string            `json:"output_name,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
	Batch      bool              `json:"batch,omitempty"`
	Remote     bool              `json:"remote,omitempty"`
	// Include filters batch listings by name
	Include string `json:"include,omitempty"`
}

// 📋 Lister is the part of the remote session the planner needs. *remote.Session implements it.
type Lister interface {
	ListObjects(ctx context.Context, container string) ([]remote.Object, error)
	ResolveName(ctx context.Context, objectID string) (string, error)
}

// 🗺️ Planner expands requests into jobs
type Planner struct {
	registry *operation.Registry
	area     *staging.Area
	fs       afero.Fs
	lister   Lister
}

type Option func(*Planner)

// WithLister enables remote requests
func WithLister(l Lister) Option {
	return func(p *Planner) {
		p.lister = l
	}
}

// 🏗️ New creates a planner. Local directories are listed on fs.
func New(registry *operation.Registry, area *staging.Area, fs afero.Fs, opts ...Option) *Planner {
	p := &Planner{
		registry: registry,
		area:     area,
		fs:       fs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type item struct {
	ref  string
	name string
}

// 🗺️ Plan validates req and expands it into jobs. Nothing is created when
// validation fails. Every job shares one option snapshot taken here.
func (p *Planner) Plan(ctx context.Context, req Request) ([]*job.Job, error) {
	spec, err := p.registry.Lookup(req.Operation)
	if err != nil {
		return nil, err
	}

	opts, err := p.registry.ParseOptions(req.Operation, req.Options)
	if err != nil {
		return nil, err
	}

	if len(req.Sources) == 0 {
		return nil, errors.Errorf("%w: %s", ErrNoInputs, req.Operation)
	}
	if req.Include != "" && !doublestar.ValidatePattern(req.Include) {
		return nil, errors.Errorf("invalid include pattern %q", req.Include)
	}
	if req.Remote && p.lister == nil {
		return nil, errors.Errorf("%w: remote mode is enabled but no remote session is configured", remote.ErrAuthRequired)
	}

	items, err := p.collect(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.Errorf("%w: nothing matched in %s", ErrNoInputs, strings.Join(req.Sources, ", "))
	}

	zerolog.Ctx(ctx).Debug().
		Str("operation", string(req.Operation)).
		Int("items", len(items)).
		Bool("batch", req.Batch).
		Bool("remote", req.Remote).
		Msg("planning request")

	if spec.ManyToOne {
		j, err := p.composite(spec, req, items, opts)
		if err != nil {
			return nil, err
		}
		return []*job.Job{j}, nil
	}

	jobs := make([]*job.Job, 0, len(items))
	for _, it := range items {
		j, err := p.single(spec, req, it, opts)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (p *Planner) collect(ctx context.Context, req Request) ([]item, error) {
	switch {
	case req.Batch && req.Remote:
		var items []item
		for _, container := range req.Sources {
			objects, err := p.lister.ListObjects(ctx, container)
			if err != nil {
				return nil, err
			}
			for _, o := range objects {
				if matches(req.Include, o.Name) {
					items = append(items, item{ref: o.ID, name: o.Name})
				}
			}
		}
		return items, nil

	case req.Batch:
		var items []item
		for _, dir := range req.Sources {
			// afero.ReadDir sorts by name
			entries, err := afero.ReadDir(p.fs, dir)
			if err != nil {
				return nil, errors.Errorf("listing %s: %w", dir, err)
			}
			for _, e := range entries {
				if e.IsDir() || !matches(req.Include, e.Name()) {
					continue
				}
				items = append(items, item{ref: filepath.Join(dir, e.Name()), name: e.Name()})
			}
		}
		return items, nil

	case req.Remote:
		items := make([]item, 0, len(req.Sources))
		for _, id := range req.Sources {
			name, err := p.lister.ResolveName(ctx, id)
			if err != nil {
				return nil, err
			}
			items = append(items, item{ref: id, name: name})
		}
		return items, nil

	default:
		items := make([]item, 0, len(req.Sources))
		for _, path := range req.Sources {
			items = append(items, item{ref: path, name: filepath.Base(path)})
		}
		return items, nil
	}
}

func matches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// single builds the job for one item of a one-to-one operation
func (p *Planner) single(spec operation.Spec, req Request, it item, opts operation.OptionBag) (*job.Job, error) {
	name := OutputName(spec, it.name)

	if !req.Remote {
		dir := req.Destination
		if dir == "" {
			dir = filepath.Dir(it.ref)
		}
		j := job.New(spec.ID, job.LocalPath(it.ref), job.LocalPath(filepath.Join(dir, name)), job.LocalPath(dir), opts)
		j.Names = []string{it.name}
		return j, nil
	}

	container := req.Destination
	if container == "" && req.Batch {
		container = req.Sources[0]
	}
	if container == "" {
		return nil, errors.Errorf("remote request for %s needs a destination container", it.name)
	}

	j := job.New(spec.ID, job.RemoteID(it.ref), job.Locator{}, job.RemoteID(container), opts)
	j.Output = job.LocalPath(p.area.Locate(j.ID, name))
	j.Names = []string{it.name}
	return j, nil
}

// composite builds the single job of a many-to-one operation
func (p *Planner) composite(spec operation.Spec, req Request, items []item, opts operation.OptionBag) (*job.Job, error) {
	refs := make([]string, 0, len(items))
	names := make([]string, 0, len(items))
	for _, it := range items {
		refs = append(refs, it.ref)
		names = append(names, it.name)
	}

	if !req.Remote {
		if req.Destination == "" {
			return nil, errors.Errorf("%s needs an output path", spec.ID)
		}
		j := job.New(spec.ID, job.LocalPath(refs...), job.LocalPath(req.Destination), job.LocalPath(req.Destination), opts)
		j.Names = names
		return j, nil
	}

	container := req.Destination
	if container == "" && req.Batch {
		container = req.Sources[0]
	}
	if container == "" {
		return nil, errors.Errorf("remote request for %s needs a destination container", spec.ID)
	}

	name := req.OutputName
	if name == "" {
		name = "merged" + Suffix + spec.Extension
	}

	j := job.New(spec.ID, job.RemoteID(refs...), job.Locator{}, job.RemoteID(container), opts)
	j.Output = job.LocalPath(p.area.Locate(j.ID, filepath.Base(name)))
	j.Names = names
	return j, nil
}

// OutputName derives the output name for inputName under spec
func OutputName(spec operation.Spec, inputName string) string {
	ext := filepath.Ext(inputName)
	base := strings.TrimSuffix(inputName, ext)

	switch spec.Output {
	case operation.OutputSameExtension:
		return base + Suffix + ext
	case operation.OutputDirectory:
		return base + Suffix
	default:
		return base + Suffix + spec.Extension
	}
}
