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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/pipeline"
)

// NewRetryCmd creates the retry command
func NewRetryCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <request-id>",
		Short: "Submit a past request again",
		Long: `Retry re-plans a request from the history with fresh job ids.
Remote inputs are downloaded again; nothing from the earlier attempt is reused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "retry").Str("retry_of", args[0]).Logger().WithContext(cmd.Context())
			return runRequest(ctx, opts, "retrying request "+args[0], func(p *pipeline.Pipeline) (*pipeline.Summary, error) {
				return p.Retry(ctx, args[0])
			})
		},
	}

	return cmd
}
