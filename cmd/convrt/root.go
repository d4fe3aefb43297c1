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
	"context"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/config"
	"github.com/walteh/convrt/pkg/leaf"
	"github.com/walteh/convrt/pkg/log"
	"github.com/walteh/convrt/pkg/operation"
	"github.com/walteh/convrt/pkg/remote"
	"github.com/walteh/convrt/pkg/staging"
	"github.com/walteh/convrt/pkg/state"
	"gitlab.com/tozd/go/errors"

	_ "github.com/walteh/convrt/pkg/remote/fsstore"
	_ "github.com/walteh/convrt/pkg/remote/gdrive"
	_ "github.com/walteh/convrt/pkg/remote/github"
)

var (
	// Flags
	configFile  string
	debug       bool
	maxParallel = -1
	stagingDir  string
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: .convrt.{yaml,yml,json,hcl} in the working directory)")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().IntVarP(&maxParallel, "max-parallel", "j", -1, "maximum jobs running at once, 0 for no limit (overrides max_parallel)")
	cmd.PersistentFlags().StringVar(&stagingDir, "staging-dir", "", "staging directory for remote files (overrides staging_dir)")
}

// applyFlagOverrides copies explicitly set flags over the loaded config
func applyFlagOverrides(cfg *config.Config) error {
	if maxParallel >= 0 {
		cfg.MaxParallel = maxParallel
	}
	if stagingDir != "" {
		cfg.StagingDir = stagingDir
	}
	return cfg.Validate()
}

func logLevel() zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

// setupLogging returns ctx carrying a zerolog logger at the level chosen by flags
func setupLogging(ctx context.Context) context.Context {
	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(logLevel()).With().Timestamp().Logger()
	return logger.WithContext(ctx)
}

// loadConfig reads the explicit config file, a default one from the working
// directory, or falls back to defaults when neither exists
func loadConfig(ctx context.Context, fs afero.Fs) (*config.Config, error) {
	path := configFile
	if path == "" {
		found, ok := config.Find(fs, ".")
		if !ok {
			zerolog.Ctx(ctx).Debug().Msg("no config file found, using defaults")
			return config.Default(), nil
		}
		path = found
	}
	return config.Load(ctx, fs, path)
}

// historyPath resolves a relative history file against the home directory
func historyPath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, file), nil
}

// initRootOpts fills o with the dependencies every command shares
func initRootOpts(ctx context.Context, o *opts.RootOpts) error {
	fs := afero.NewOsFs()

	cfg, err := loadConfig(ctx, fs)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}
	if err := applyFlagOverrides(cfg); err != nil {
		return errors.Errorf("applying flags: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("config", cfg).Msg("configuration loaded")

	registry, err := operation.NewDefaultRegistry(leaf.NewToolchain(cfg.LeafTools()))
	if err != nil {
		return errors.Errorf("building operation registry: %w", err)
	}

	hp, err := historyPath(cfg.HistoryFile)
	if err != nil {
		return err
	}
	history := state.New(fs, hp)
	if err := history.Load(ctx); err != nil {
		return errors.Errorf("loading history: %w", err)
	}

	var session *remote.Session
	if cfg.Remote != nil {
		name, bc, err := cfg.BackendConfig(fs)
		if err != nil {
			return err
		}
		bc.Prompt = func(url string) {
			pterm.Info.Printfln("Open this URL in a browser to grant access:\n%s", url)
		}
		backend, err := remote.NewBackend(name, bc)
		if err != nil {
			return errors.Errorf("creating %s backend: %w", name, err)
		}
		session = remote.NewSession(backend, fs)
	}

	*o = opts.RootOpts{
		Config:   cfg,
		Fs:       fs,
		Logger:   log.New(os.Stdout, logLevel()),
		Registry: registry,
		Area:     staging.NewArea(fs, cfg.StagingDir),
		History:  history,
		Session:  session,
	}
	return nil
}
