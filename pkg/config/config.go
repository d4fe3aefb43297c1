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

package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/convrt/pkg/leaf"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// DefaultNames are the config files looked up in the working directory, in order
var DefaultNames = []string{".convrt.yaml", ".convrt.yml", ".convrt.json", ".convrt.hcl"}

// Providers are the remote backends a config may name
var Providers = []string{"gdrive", "github", "filesystem"}

// ☁️ Remote configures the remote store
type Remote struct {
	Provider        string `json:"provider" yaml:"provider"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	TokenFile       string `json:"token_file,omitempty" yaml:"token_file,omitempty"`
	Root            string `json:"root,omitempty" yaml:"root,omitempty"`
	// Interactive allows browser consent; unset means true
	Interactive *bool `json:"interactive,omitempty" yaml:"interactive,omitempty"`
}

// 🔧 Tools overrides the external executables used by the leaves
type Tools struct {
	FFmpeg    string `json:"ffmpeg,omitempty" yaml:"ffmpeg,omitempty"`
	Soffice   string `json:"soffice,omitempty" yaml:"soffice,omitempty"`
	Magick    string `json:"magick,omitempty" yaml:"magick,omitempty"`
	Pdftoppm  string `json:"pdftoppm,omitempty" yaml:"pdftoppm,omitempty"`
	Pdftotext string `json:"pdftotext,omitempty" yaml:"pdftotext,omitempty"`
	Pandoc    string `json:"pandoc,omitempty" yaml:"pandoc,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Remote      *Remote `json:"remote,omitempty" yaml:"remote,omitempty"`
	StagingDir  string  `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty"`
	MaxParallel int     `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
	HistoryFile string  `json:"history_file,omitempty" yaml:"history_file,omitempty"`
	Tools       Tools   `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// 🏭 Default returns a validated config with every default filled in
func Default() *Config {
	cfg := &Config{}
	// defaults always validate
	_ = cfg.Validate()
	return cfg
}

// 🎯 Load loads the configuration from a file on fs
func Load(ctx context.Context, fs afero.Fs, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Find returns the first default config file present in dir
func Find(fs afero.Fs, dir string) (string, bool) {
	for _, name := range DefaultNames {
		path := filepath.Join(dir, name)
		if ok, err := afero.Exists(fs, path); err == nil && ok {
			return path, true
		}
	}
	return "", false
}

// 🔍 Validate checks if the configuration is valid and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.MaxParallel < 0 {
		return errors.Errorf("max_parallel must not be negative, got %d", cfg.MaxParallel)
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = staging.DefaultRoot()
	}
	cfg.StagingDir = filepath.Clean(cfg.StagingDir)

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(".convrt", "history.json")
	}
	cfg.HistoryFile = filepath.Clean(cfg.HistoryFile)

	if cfg.Remote != nil {
		r := cfg.Remote
		r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
		if r.Provider == "" {
			return errors.Errorf("remote.provider is required")
		}
		if !slices.Contains(Providers, r.Provider) {
			return errors.Errorf("remote.provider %q is not one of %s", r.Provider, strings.Join(Providers, ", "))
		}
		if r.Provider == "filesystem" && r.Root == "" {
			return errors.Errorf("remote.root is required for the filesystem provider")
		}
		if r.CredentialsFile == "" {
			r.CredentialsFile = "credentials.json"
		}
		if r.TokenFile == "" {
			r.TokenFile = "token.json"
		}
	}

	return nil
}

// Interactive reports whether browser consent may be started
func (cfg *Config) Interactive() bool {
	if cfg.Remote == nil || cfg.Remote.Interactive == nil {
		return true
	}
	return *cfg.Remote.Interactive
}

// LeafTools converts the tool overrides for the leaf toolchain
func (cfg *Config) LeafTools() leaf.Tools {
	return leaf.Tools{
		FFmpeg:    cfg.Tools.FFmpeg,
		Soffice:   cfg.Tools.Soffice,
		Magick:    cfg.Tools.Magick,
		Pdftoppm:  cfg.Tools.Pdftoppm,
		Pdftotext: cfg.Tools.Pdftotext,
		Pandoc:    cfg.Tools.Pandoc,
	}
}

// BackendConfig converts the remote section for remote.NewBackend
func (cfg *Config) BackendConfig(fs afero.Fs) (string, remote.BackendConfig, error) {
	if cfg.Remote == nil {
		return "", remote.BackendConfig{}, errors.Errorf("%w: no remote configured", remote.ErrAuthRequired)
	}
	return cfg.Remote.Provider, remote.BackendConfig{
		CredentialsFile: cfg.Remote.CredentialsFile,
		TokenFile:       cfg.Remote.TokenFile,
		Root:            cfg.Remote.Root,
		Interactive:     cfg.Interactive(),
		Fs:              fs,
	}, nil
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	provider := "none"
	if cfg.Remote != nil {
		provider = cfg.Remote.Provider
	}
	return fmt.Sprintf("remote=%s staging=%s max_parallel=%d history=%s", provider, cfg.StagingDir, cfg.MaxParallel, cfg.HistoryFile)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}
