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

package leaf

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/clbanning/mxj/v2"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// writeOutput writes converted bytes, creating parent directories
func writeOutput(out string, data []byte) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Errorf("writing %s: %w", out, err)
	}
	return nil
}

func (t *Toolchain) JSONToYAML(ctx context.Context, in, out string) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return errors.Errorf("reading %s: %w", in, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Errorf("parsing JSON: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return errors.Errorf("encoding YAML: %w", err)
	}
	return writeOutput(out, buf.Bytes())
}

func (t *Toolchain) YAMLToJSON(ctx context.Context, in, out string) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return errors.Errorf("reading %s: %w", in, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Errorf("parsing YAML: %w", err)
	}

	data, err := json.MarshalIndent(normalizeYAML(doc), "", "  ")
	if err != nil {
		return errors.Errorf("encoding JSON: %w", err)
	}
	return writeOutput(out, append(data, '\n'))
}

// normalizeYAML converts map[any]any (non-string YAML keys) into JSON-encodable maps
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeYAML(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalizeYAML(e)
		}
		return x
	default:
		return v
	}
}

// CSVToJSON turns a headed CSV into an array of objects keyed by header
func (t *Toolchain) CSVToJSON(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return errors.Errorf("opening %s: %w", in, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return errors.Errorf("parsing CSV: %w", err)
	}

	rows := make([]map[string]string, 0, len(records))
	if len(records) > 0 {
		header := records[0]
		for _, rec := range records[1:] {
			row := make(map[string]string, len(header))
			for i, key := range header {
				if i < len(rec) {
					row[key] = rec[i]
				} else {
					row[key] = ""
				}
			}
			rows = append(rows, row)
		}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return errors.Errorf("encoding JSON: %w", err)
	}
	return writeOutput(out, append(data, '\n'))
}

// JSONToCSV flattens an array of objects (or one object) into CSV; the header is
// the sorted union of keys and nested values are written as JSON
func (t *Toolchain) JSONToCSV(ctx context.Context, in, out string) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return errors.Errorf("reading %s: %w", in, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Errorf("parsing JSON: %w", err)
	}

	var rows []map[string]any
	switch x := doc.(type) {
	case []any:
		for i, e := range x {
			obj, ok := e.(map[string]any)
			if !ok {
				return errors.Errorf("element %d is not an object", i)
			}
			rows = append(rows, obj)
		}
	case map[string]any:
		rows = append(rows, x)
	default:
		return errors.Errorf("expected an array of objects, got %T", doc)
	}

	keySet := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			keySet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keySet))
	for k := range keySet {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return errors.Errorf("writing CSV header: %w", err)
	}
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, k := range header {
			cell, err := csvCell(row[k])
			if err != nil {
				return err
			}
			rec[i] = cell
		}
		if err := w.Write(rec); err != nil {
			return errors.Errorf("writing CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Errorf("writing CSV: %w", err)
	}
	return writeOutput(out, buf.Bytes())
}

func csvCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", errors.Errorf("encoding nested value: %w", err)
		}
		return string(b), nil
	}
}

func (t *Toolchain) XMLToJSON(ctx context.Context, in, out string) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return errors.Errorf("reading %s: %w", in, err)
	}
	m, err := mxj.NewMapXml(raw)
	if err != nil {
		return errors.Errorf("parsing XML: %w", err)
	}
	data, err := m.JsonIndent("", "  ")
	if err != nil {
		return errors.Errorf("encoding JSON: %w", err)
	}
	return writeOutput(out, append(data, '\n'))
}

// JSONToXML uses the single top-level key as the root element, otherwise "root"
func (t *Toolchain) JSONToXML(ctx context.Context, in, out string) error {
	raw, err := os.ReadFile(in)
	if err != nil {
		return errors.Errorf("reading %s: %w", in, err)
	}
	m, err := mxj.NewMapJson(raw)
	if err != nil {
		return errors.Errorf("parsing JSON: %w", err)
	}

	var data []byte
	if len(m) == 1 {
		data, err = m.XmlIndent("", "  ")
	} else {
		data, err = m.XmlIndent("", "  ", "root")
	}
	if err != nil {
		return errors.Errorf("encoding XML: %w", err)
	}
	return writeOutput(out, append([]byte(xmlHeader), append(data, '\n')...))
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
