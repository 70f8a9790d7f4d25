// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httptransport

import (
	"net/http"

	auth "github.com/googleapis/google-auth-go"
	"github.com/googleapis/google-auth-go/credentials"
)

func newTransport(base http.RoundTripper, opts *Options) (http.RoundTripper, error) {
	if len(opts.Headers) > 0 {
		base = &headerTransport{
			base:    base,
			headers: opts.Headers.Clone(),
		}
	}
	if opts.DisableAuthentication {
		return base, nil
	}
	creds := opts.Credentials
	if creds == nil {
		var err error
		creds, err = credentials.DetectDefault(opts.resolveDetectOptions())
		if err != nil {
			return nil, err
		}
	}
	return &authTransport{
		creds: creds,
		base:  base,
	}, nil
}

// headerTransport appends fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	for k, vals := range t.headers {
		for _, v := range vals {
			req2.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(req2)
}

// authTransport sets the Authorization header from the wrapped credentials on
// every request, refreshing through the credentials' provider as needed.
type authTransport struct {
	creds *auth.Credentials
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.creds.Token(req.Context())
	if err != nil {
		return nil, err
	}
	typ := token.Type
	if typ == "" {
		typ = "Bearer"
	}
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", typ+" "+token.Value)
	return t.base.RoundTrip(req2)
}
