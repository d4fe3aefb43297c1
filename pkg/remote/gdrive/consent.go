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

package gdrive

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
)

// 🌍 LoopbackConsent runs the installed-app flow: a one-shot HTTP listener on
// 127.0.0.1 receives the authorization code. prompt is given the URL to open.
func LoopbackConsent(prompt func(url string)) ConsentFunc {
	return func(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, errors.Errorf("starting callback listener: %w", err)
		}

		conf := *base
		conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
		state := uuid.NewString()

		codes := make(chan string, 1)
		failures := make(chan error, 1)

		srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			if msg := q.Get("error"); msg != "" {
				select {
				case failures <- errors.Errorf("authorization denied: %s", msg):
				default:
				}
				fmt.Fprintln(w, "Authorization failed. You can close this window.")
				return
			}
			select {
			case codes <- q.Get("code"):
			default:
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		})}

		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("callback server stopped")
			}
		}()
		defer srv.Shutdown(context.WithoutCancel(ctx))

		prompt(conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

		select {
		case code := <-codes:
			tok, err := conf.Exchange(ctx, code)
			if err != nil {
				return nil, errors.Errorf("exchanging authorization code: %w", err)
			}
			return tok, nil
		case err := <-failures:
			return nil, err
		case <-ctx.Done():
			return nil, errors.Errorf("waiting for consent: %w", ctx.Err())
		}
	}
}
