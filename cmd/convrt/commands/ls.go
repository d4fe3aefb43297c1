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

package commands

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"gitlab.com/tozd/go/errors"
)

// NewLsCmd creates the ls command
func NewLsCmd(opts *opts.RootOpts) *cobra.Command {
	var include string

	cmd := &cobra.Command{
		Use:   "ls <container>",
		Short: "List the objects of a remote container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if include != "" && !doublestar.ValidatePattern(include) {
				return errors.Errorf("invalid include pattern %q", include)
			}

			session, err := opts.RequireSession()
			if err != nil {
				return err
			}

			objects, err := session.ListObjects(cmd.Context(), args[0])
			if err != nil {
				return errors.Errorf("listing %s: %w", args[0], err)
			}

			data := pterm.TableData{{"id", "name"}}
			for _, o := range objects {
				if include != "" {
					if ok, _ := doublestar.Match(include, o.Name); !ok {
						continue
					}
				}
				data = append(data, []string{o.ID, o.Name})
			}
			if len(data) == 1 {
				pterm.Info.Printfln("%s is empty", args[0])
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().StringVar(&include, "include", "", "glob filter applied to object names")

	return cmd
}
