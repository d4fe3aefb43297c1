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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/config"
)

func testContext() context.Context {
	return zerolog.New(io.Discard).WithContext(context.Background())
}

func withConfigFile(t *testing.T, path string) {
	t.Helper()
	prev := configFile
	configFile = path
	t.Cleanup(func() { configFile = prev })
}

func TestVersionCommand(t *testing.T) {
	withConfigFile(t, "/does/not/exist.yaml")

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute(), "version must not load the config")

	var info VersionInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "convrt version info")
}

func TestApplyFlagOverrides(t *testing.T) {
	prevParallel, prevStaging := maxParallel, stagingDir
	t.Cleanup(func() { maxParallel, stagingDir = prevParallel, prevStaging })

	maxParallel, stagingDir = -1, ""
	c := &config.Config{MaxParallel: 3, StagingDir: "/from/file"}
	require.NoError(t, applyFlagOverrides(c))
	assert.Equal(t, 3, c.MaxParallel, "unset flags keep file values")
	assert.Equal(t, "/from/file", c.StagingDir)

	maxParallel, stagingDir = 0, "/from/flag/"
	require.NoError(t, applyFlagOverrides(c))
	assert.Equal(t, 0, c.MaxParallel)
	assert.Equal(t, "/from/flag", c.StagingDir)
}

func TestHistoryPath(t *testing.T) {
	got, err := historyPath("/var/lib/convrt/history.json")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/convrt/history.json", got)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = historyPath(filepath.Join(".convrt", "history.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".convrt", "history.json"), got)
}

func TestInitRootOpts(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		wantErr     bool
		errContains string
		check       func(t *testing.T, o *opts.RootOpts)
	}{
		{
			name: "filesystem_remote",
			config: `
remote:
  provider: filesystem
  root: {{dir}}/share
staging_dir: {{dir}}/stage
history_file: {{dir}}/history.json
max_parallel: 2
`,
			check: func(t *testing.T, o *opts.RootOpts) {
				require.NotNil(t, o.Session)
				assert.Equal(t, "filesystem", o.Session.Backend())
				assert.Equal(t, 2, o.Config.MaxParallel)
				assert.NotEmpty(t, o.Registry.IDs())
				assert.NotNil(t, o.Pipeline(nil))
			},
		},
		{
			name: "local_only",
			config: `
staging_dir: {{dir}}/stage
history_file: {{dir}}/history.json
`,
			check: func(t *testing.T, o *opts.RootOpts) {
				assert.Nil(t, o.Session)
				_, err := o.RequireSession()
				assert.Error(t, err)
				assert.NotNil(t, o.Pipeline(nil), "a local pipeline needs no session")
			},
		},
		{
			name:        "bad_config",
			config:      "copies: []\n",
			wantErr:     true,
			errContains: "loading config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, ".convrt.yaml")
			content := bytes.ReplaceAll([]byte(tt.config), []byte("{{dir}}"), []byte(dir))
			require.NoError(t, afero.WriteFile(afero.NewOsFs(), path, content, 0o644))
			withConfigFile(t, path)

			o := &opts.RootOpts{}
			err := initRootOpts(testContext(), o)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, o)
			}
		})
	}
}
