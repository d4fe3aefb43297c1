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
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// Expressions may read the environment through env, e.g. "${env.HOME}/.convrt".
type HCLParser struct {
	// Environ overrides os.Environ when set
	Environ func() []string
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) envValue() cty.Value {
	environ := os.Environ
	if p.Environ != nil {
		environ = p.Environ
	}
	vars := map[string]cty.Value{}
	for _, kv := range environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	return cty.ObjectVal(vars)
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": p.envValue(),
		},
	}

	// Define HCL schema
	type hclConfig struct {
		Remote *struct {
			Provider        string  `hcl:"provider"`
			CredentialsFile *string `hcl:"credentials_file,optional"`
			TokenFile       *string `hcl:"token_file,optional"`
			Root            *string `hcl:"root,optional"`
			Interactive     *bool   `hcl:"interactive,optional"`
		} `hcl:"remote,block"`
		Tools *struct {
			FFmpeg    *string `hcl:"ffmpeg,optional"`
			Soffice   *string `hcl:"soffice,optional"`
			Magick    *string `hcl:"magick,optional"`
			Pdftoppm  *string `hcl:"pdftoppm,optional"`
			Pdftotext *string `hcl:"pdftotext,optional"`
			Pandoc    *string `hcl:"pandoc,optional"`
		} `hcl:"tools,block"`
		StagingDir  *string `hcl:"staging_dir,optional"`
		MaxParallel *int    `hcl:"max_parallel,optional"`
		HistoryFile *string `hcl:"history_file,optional"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		StagingDir:  deref(hclCfg.StagingDir),
		HistoryFile: deref(hclCfg.HistoryFile),
	}
	if hclCfg.MaxParallel != nil {
		cfg.MaxParallel = *hclCfg.MaxParallel
	}

	if r := hclCfg.Remote; r != nil {
		cfg.Remote = &Remote{
			Provider:        r.Provider,
			CredentialsFile: deref(r.CredentialsFile),
			TokenFile:       deref(r.TokenFile),
			Root:            deref(r.Root),
			Interactive:     r.Interactive,
		}
	}

	if t := hclCfg.Tools; t != nil {
		cfg.Tools = Tools{
			FFmpeg:    deref(t.FFmpeg),
			Soffice:   deref(t.Soffice),
			Magick:    deref(t.Magick),
			Pdftoppm:  deref(t.Pdftoppm),
			Pdftotext: deref(t.Pdftotext),
			Pandoc:    deref(t.Pandoc),
		}
	}

	return cfg, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
