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
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrValidation matches every *ValidationError
var ErrValidation = errors.Base("invalid options")

// ❌ ValidationError reports a missing or malformed option
type ValidationError struct {
	Operation ID
	Key       string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid option %q for %s: %s", e.Key, e.Operation, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// 🔤 OptionKind is the declared type of an option value
type OptionKind int

const (
	KindNumber     OptionKind = iota // float64
	KindInteger                      // int
	KindString                       // string
	KindPair                         // Pair, e.g. "1920x1080" or "10,20"
	KindChoice                       // string drawn from Choices
	KindPath                         // string, optional path
	KindNumberList                   // []float64, comma separated
)

func (k OptionKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindPair:
		return "pair"
	case KindChoice:
		return "choice"
	case KindPath:
		return "path"
	case KindNumberList:
		return "number list"
	default:
		return "unknown"
	}
}

// 📐 OptionSpec declares one recognized option key
type OptionSpec struct {
	Key      string
	Kind     OptionKind
	Required bool
	// Sep separates the two halves of a KindPair value
	Sep     string
	Choices []string
}

// Describe renders the spec for help output
func (s OptionSpec) Describe() string {
	var b strings.Builder
	b.WriteString(s.Key)
	b.WriteString(" (")
	switch s.Kind {
	case KindPair:
		fmt.Fprintf(&b, "A%sB", s.Sep)
	case KindChoice:
		b.WriteString(strings.Join(s.Choices, "|"))
	default:
		b.WriteString(s.Kind.String())
	}
	b.WriteString(")")
	if !s.Required {
		b.WriteString("?")
	}
	return b.String()
}

// 🔢 Pair is a two-integer option value
type Pair [2]int

// 🎒 OptionBag maps option keys to typed values. A bag is never mutated after
// parsing; share it freely between jobs.
type OptionBag map[string]any

// Clone returns an independent copy of the bag
func (b OptionBag) Clone() OptionBag {
	out := make(OptionBag, len(b))
	for k, v := range b {
		if list, ok := v.([]float64); ok {
			v = append([]float64(nil), list...)
		}
		out[k] = v
	}
	return out
}

func (b OptionBag) Has(key string) bool {
	_, ok := b[key]
	return ok
}

func (b OptionBag) Float(key string) float64 {
	v, _ := b[key].(float64)
	return v
}

func (b OptionBag) Int(key string) int {
	v, _ := b[key].(int)
	return v
}

func (b OptionBag) String(key string) string {
	v, _ := b[key].(string)
	return v
}

func (b OptionBag) Pair(key string) Pair {
	v, _ := b[key].(Pair)
	return v
}

func (b OptionBag) Floats(key string) []float64 {
	v, _ := b[key].([]float64)
	return v
}

// parseOptions builds a typed bag from raw string values. Unknown keys are ignored.
func parseOptions(id ID, specs []OptionSpec, raw map[string]string) (OptionBag, error) {
	bag := OptionBag{}
	for _, spec := range specs {
		text, ok := raw[spec.Key]
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			if spec.Required {
				return nil, &ValidationError{Operation: id, Key: spec.Key, Reason: "required option is missing"}
			}
			continue
		}

		v, err := parseValue(spec, text)
		if err != nil {
			return nil, &ValidationError{Operation: id, Key: spec.Key, Reason: err.Error()}
		}
		bag[spec.Key] = v
	}
	return bag, nil
}

func parseValue(spec OptionSpec, text string) (any, error) {
	switch spec.Kind {
	case KindNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not a number", text)
		}
		return f, nil
	case KindInteger:
		i, err := strconv.Atoi(text)
		if err != nil {
			return nil, errors.Errorf("%q is not an integer", text)
		}
		return i, nil
	case KindString, KindPath:
		return text, nil
	case KindPair:
		parts := strings.Split(text, spec.Sep)
		if len(parts) != 2 {
			return nil, errors.Errorf("%q is not of the form A%sB", text, spec.Sep)
		}
		var p Pair
		for i, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, errors.Errorf("%q is not an integer", part)
			}
			p[i] = n
		}
		return p, nil
	case KindChoice:
		choice := strings.ToLower(text)
		for _, c := range spec.Choices {
			if c == choice {
				return choice, nil
			}
		}
		return nil, errors.Errorf("%q is not one of %s", text, strings.Join(spec.Choices, ", "))
	case KindNumberList:
		parts := strings.Split(text, ",")
		out := make([]float64, 0, len(parts))
		for _, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, errors.Errorf("%q is not a number", part)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported option kind %d", spec.Kind)
	}
}
