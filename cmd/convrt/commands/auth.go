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
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewAuthCmd creates the auth command
func NewAuthCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the configured remote store",
		Long: `Auth obtains a credential for the configured remote store and caches it
in the token file. Later commands reuse the cached token and refresh it when
it expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.RequireSession()
			if err != nil {
				return err
			}
			if err := session.Authenticate(cmd.Context()); err != nil {
				return errors.Errorf("authenticating: %w", err)
			}
			log.FromContext(cmd.Context()).Successf("Authenticated with %s", session.Backend())
			return nil
		},
	}

	return cmd
}
