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
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/convrt/cmd/convrt/opts"
	"github.com/walteh/convrt/pkg/state"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		limit      int
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "history [request-id]",
		Short: "Show past requests, or the jobs of one request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rec, err := opts.History.Lookup(args[0])
				if err != nil {
					return err
				}
				return renderJobs(rec)
			}
			return renderRequests(opts.History.Requests(), limit, failedOnly)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent requests to show")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only show requests with failed jobs")

	return cmd
}

func requestStatus(rec state.RequestRecord) string {
	switch {
	case rec.Error != "":
		return pterm.Red("rejected")
	case rec.Failed():
		return pterm.Yellow("failed")
	default:
		return pterm.Green("succeeded")
	}
}

func renderRequests(recs []state.RequestRecord, limit int, failedOnly bool) error {
	data := pterm.TableData{{"id", "submitted", "operation", "sources", "jobs", "status"}}
	shown := 0
	for i := len(recs) - 1; i >= 0 && (limit <= 0 || shown < limit); i-- {
		rec := recs[i]
		if failedOnly && !rec.Failed() {
			continue
		}
		sources := strings.Join(rec.Request.Sources, ", ")
		if rec.Request.Remote {
			sources = "remote:" + sources
		}
		data = append(data, []string{
			rec.Request.ID,
			rec.SubmittedAt.Local().Format(time.DateTime),
			string(rec.Request.Operation),
			sources,
			fmt.Sprint(len(rec.Jobs)),
			requestStatus(rec),
		})
		shown++
	}
	if shown == 0 {
		pterm.Info.Println("no requests recorded")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderJobs(rec state.RequestRecord) error {
	if rec.Error != "" {
		pterm.Error.Printfln("request %s was rejected: %s", rec.Request.ID, rec.Error)
		return nil
	}
	if rec.RetryOf != "" {
		pterm.Info.Printfln("retry of %s", rec.RetryOf)
	}
	data := pterm.TableData{{"job", "input", "output", "status", "message"}}
	for _, j := range rec.Jobs {
		output := j.Output
		if len(j.Uploaded) > 0 {
			output = strings.Join(j.Uploaded, ", ")
		}
		if j.Kept != "" {
			output = j.Kept + " (kept)"
		}
		data = append(data, []string{j.JobID, j.Input, output, j.Status, j.Message})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
