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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "writing input should succeed")
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "reading output should succeed")
	return string(data)
}

func TestDataConversions(t *testing.T) {
	tc := NewToolchain(Tools{})

	tests := []struct {
		name    string
		input   string
		inName  string
		convert func(ctx context.Context, in, out string) error
		check   func(t *testing.T, out string)
		wantErr bool
	}{
		{
			name:    "json_to_yaml",
			inName:  "doc.json",
			input:   `{"name":"convrt","tags":["a","b"]}`,
			convert: tc.JSONToYAML,
			check: func(t *testing.T, out string) {
				var got map[string]any
				require.NoError(t, yaml.Unmarshal([]byte(out), &got))
				assert.Equal(t, "convrt", got["name"])
				assert.Equal(t, []any{"a", "b"}, got["tags"])
			},
		},
		{
			name:    "yaml_to_json_with_int_keys",
			inName:  "doc.yaml",
			input:   "codes:\n  1: one\n  2: two\n",
			convert: tc.YAMLToJSON,
			check: func(t *testing.T, out string) {
				var got map[string]map[string]string
				require.NoError(t, json.Unmarshal([]byte(out), &got), "output should be valid JSON")
				assert.Equal(t, map[string]string{"1": "one", "2": "two"}, got["codes"])
			},
		},
		{
			name:    "csv_to_json",
			inName:  "rows.csv",
			input:   "id,name\n1,alpha\n2,beta\n",
			convert: tc.CSVToJSON,
			check: func(t *testing.T, out string) {
				var got []map[string]string
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, []map[string]string{
					{"id": "1", "name": "alpha"},
					{"id": "2", "name": "beta"},
				}, got)
			},
		},
		{
			name:    "json_to_csv_union_of_keys",
			inName:  "rows.json",
			input:   `[{"b":1,"a":"x"},{"a":"y","c":{"n":true}}]`,
			convert: tc.JSONToCSV,
			check: func(t *testing.T, out string) {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				require.Len(t, lines, 3)
				assert.Equal(t, "a,b,c", lines[0], "header should be sorted")
				assert.Equal(t, "x,1,", lines[1])
				assert.Equal(t, `y,,"{""n"":true}"`, lines[2], "nested values should be JSON")
			},
		},
		{
			name:    "json_to_csv_rejects_scalars",
			inName:  "rows.json",
			input:   `[1,2]`,
			convert: tc.JSONToCSV,
			wantErr: true,
		},
		{
			name:    "xml_to_json",
			inName:  "doc.xml",
			input:   `<book><title>Go</title></book>`,
			convert: tc.XMLToJSON,
			check: func(t *testing.T, out string) {
				var got map[string]map[string]string
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, "Go", got["book"]["title"])
			},
		},
		{
			name:    "json_to_xml_single_root",
			inName:  "doc.json",
			input:   `{"book":{"title":"Go"}}`,
			convert: tc.JSONToXML,
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "<?xml"), "output should carry an xml header")
				assert.Contains(t, out, "<book>")
				assert.Contains(t, out, "<title>Go</title>")
			},
		},
		{
			name:    "json_to_xml_wraps_multiple_keys",
			inName:  "doc.json",
			input:   `{"a":"1","b":"2"}`,
			convert: tc.JSONToXML,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "<root>")
				assert.Contains(t, out, "<a>1</a>")
			},
		},
		{
			name:    "bad_json",
			inName:  "doc.json",
			input:   `{`,
			convert: tc.JSONToYAML,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := writeInput(t, tt.inName, tt.input)
			out := filepath.Join(t.TempDir(), "nested", "out")

			err := tt.convert(context.Background(), in, out)
			if tt.wantErr {
				assert.Error(t, err, "conversion should fail")
				return
			}
			require.NoError(t, err, "conversion should succeed")
			tt.check(t, readOutput(t, out))
		})
	}
}
