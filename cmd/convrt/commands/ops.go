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
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/operation"
)

// NewOpsCmd creates the ops command
func NewOpsCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List the available operations and their options",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"operation", "output", "inputs", "options"}}
			for _, id := range opts.Registry.IDs() {
				spec, err := opts.Registry.Lookup(id)
				if err != nil {
					return err
				}
				data = append(data, []string{string(id), describeOutput(spec), describeInputs(spec), describeOptions(spec)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	return cmd
}

func describeOutput(spec operation.Spec) string {
	switch spec.Output {
	case operation.OutputSameExtension:
		return "same extension"
	case operation.OutputDirectory:
		return "directory"
	default:
		return spec.Extension
	}
}

func describeInputs(spec operation.Spec) string {
	if spec.ManyToOne {
		return "many"
	}
	return "one"
}

func describeOptions(spec operation.Spec) string {
	parts := make([]string, 0, len(spec.Options))
	for _, o := range spec.Options {
		parts = append(parts, o.Describe())
	}
	return strings.Join(parts, " ")
}
