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

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/commands"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/log"
)

// newRootCmd builds the command tree. Shared dependencies are created once
// flags are parsed, before the selected subcommand runs.
func newRootCmd() *cobra.Command {
	o := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "convrt",
		Short: "Convert documents, images, audio and video, locally or on a remote store",
		Long: `convrt runs file conversions and edits on local files or on objects in a
remote store (Google Drive, a GitHub repository, or a shared directory).
Remote inputs are staged locally, converted, and the results uploaded back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging(cmd.Context())
			if err := initRootOpts(ctx, o); err != nil {
				return err
			}
			cmd.SetContext(log.NewContext(ctx, o.Logger))
			return nil
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewConvertCmd(o),
		commands.NewOpsCmd(o),
		commands.NewAuthCmd(o),
		commands.NewLsCmd(o),
		commands.NewHistoryCmd(o),
		commands.NewRetryCmd(o),
		newVersionCmd(),
	)

	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
