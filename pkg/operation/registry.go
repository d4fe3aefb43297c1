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

package operation

import (
	"context"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// ErrUnknownOperation is returned for ids missing from the registry
var ErrUnknownOperation = errors.Base("unknown operation")

// 🍃 Leaf runs one transformation. inputs has exactly one element unless the
// operation is many-to-one.
type Leaf func(ctx context.Context, inputs []string, output string, opts OptionBag) error

// 📦 OutputKind says how an operation names its output
type OutputKind int

const (
	// OutputFile writes <base>_converted<Extension>
	OutputFile OutputKind = iota
	// OutputSameExtension writes <base>_converted<input extension>
	OutputSameExtension
	// OutputDirectory writes into a <base>_converted directory
	OutputDirectory
)

// 📋 Spec describes one registered operation
type Spec struct {
	ID        ID
	Leaf      Leaf
	Options   []OptionSpec
	Output    OutputKind
	Extension string
	// ManyToOne operations take an ordered list of inputs and write one output
	ManyToOne bool
}

// RequiredKeys lists the option keys that must be present
func (s Spec) RequiredKeys() []string {
	keys := []string{}
	for _, o := range s.Options {
		if o.Required {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// 🗂️ Registry is an immutable lookup from ID to Spec
type Registry struct {
	specs map[ID]Spec
}

// 🏭 NewRegistry builds a registry from a static table. Every entry must carry a leaf.
func NewRegistry(table []Spec) (*Registry, error) {
	specs := make(map[ID]Spec, len(table))
	for _, s := range table {
		if s.ID == "" {
			return nil, errors.Errorf("operation with empty id")
		}
		if s.Leaf == nil {
			return nil, errors.Errorf("operation %s has no leaf", s.ID)
		}
		if _, dup := specs[s.ID]; dup {
			return nil, errors.Errorf("operation %s registered twice", s.ID)
		}
		specs[s.ID] = s
	}
	return &Registry{specs: specs}, nil
}

// Lookup returns the full spec for an id
func (r *Registry) Lookup(id ID) (Spec, error) {
	s, ok := r.specs[id]
	if !ok {
		return Spec{}, errors.Errorf("%w: %q", ErrUnknownOperation, string(id))
	}
	return s, nil
}

// Resolve returns the leaf for an id
func (r *Registry) Resolve(id ID) (Leaf, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return s.Leaf, nil
}

// RequiredOptions returns the keys that must be present for id
func (r *Registry) RequiredOptions(id ID) ([]string, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return s.RequiredKeys(), nil
}

// ParseOptions validates raw option strings for id and returns a typed snapshot
func (r *Registry) ParseOptions(id ID, raw map[string]string) (OptionBag, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return parseOptions(id, s.Options, raw)
}

// IDs lists every registered id in sorted order
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
