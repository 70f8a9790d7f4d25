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

// Package httptransport provides functionality for managing HTTP client
// connections that authenticate with detected credentials and, when
// configured, present a client certificate.
package httptransport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/googleapis/gax-go/v2/internallog"
	auth "github.com/googleapis/google-auth-go"
	"github.com/googleapis/google-auth-go/credentials"
	"github.com/googleapis/google-auth-go/mtls"
)

// Options used to configure an [net/http.Client] from [NewClient].
type Options struct {
	// DisableAuthentication specifies that no authentication should be used.
	// It is mutually exclusive with options that set or detect credentials.
	DisableAuthentication bool
	// Headers are extra HTTP headers that will be appended to every outgoing
	// request.
	Headers http.Header
	// Credentials used to add Authorization headers to all requests. If set,
	// detection is skipped.
	Credentials *auth.Credentials
	// DetectOpts configures the credential detection that runs when
	// Credentials are not provided. Optional.
	DetectOpts *credentials.DetectOptions
	// MTLSProvider drives the client certificate decision. If nil, an
	// environment-gated [mtls.EnvProvider] is consulted.
	MTLSProvider mtls.Provider
	// BaseRoundTripper overrides the base transport used for serving
	// requests. If set, the client certificate decision is skipped, since
	// TLS configuration belongs to the provided transport.
	BaseRoundTripper http.RoundTripper
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled.
	// Optional.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o == nil {
		return errors.New("httptransport: options must be provided")
	}
	hasCreds := o.Credentials != nil ||
		(o.DetectOpts != nil && len(o.DetectOpts.CredentialsJSON) > 0) ||
		(o.DetectOpts != nil && o.DetectOpts.CredentialsFile != "")
	if o.DisableAuthentication && hasCreds {
		return errors.New("httptransport: DisableAuthentication is incompatible with options that set or detect credentials")
	}
	return nil
}

func (o *Options) logger() *slog.Logger {
	return internallog.New(o.Logger)
}

func (o *Options) mtlsProvider() mtls.Provider {
	if o.MTLSProvider != nil {
		return o.MTLSProvider
	}
	return &mtls.EnvProvider{}
}

// resolveDetectOptions returns the detect options to use when no credentials
// were provided, threading through the transport's logger.
func (o *Options) resolveDetectOptions() *credentials.DetectOptions {
	var do credentials.DetectOptions
	if o.DetectOpts != nil {
		do = *o.DetectOpts
	}
	if do.Logger == nil {
		do.Logger = o.Logger
	}
	return &do
}

// NewClient returns a [net/http.Client] that adds an Authorization header to
// all requests and, when the trust decision calls for it, presents a client
// certificate during the TLS handshake. Credentials are taken from
// [Options.Credentials] or detected with [credentials.DetectDefault].
func NewClient(opts *Options) (*http.Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	base := opts.BaseRoundTripper
	if base == nil {
		trustConfig, err := mtls.SelectTrust(opts.mtlsProvider())
		if err != nil {
			return nil, err
		}
		t := defaultBaseTransport()
		if trustConfig.UseClientCertificate {
			t.TLSClientConfig = &tls.Config{
				GetClientCertificate: trustConfig.Source,
			}
		}
		base = t
	}
	trans, err := newTransport(base, opts)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: trans}, nil
}

func defaultBaseTransport() *http.Transport {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return &http.Transport{}
}

// AddAuthorizationMiddleware adds a middleware to the provided client's
// transport that sets the Authorization header using the provided credentials.
// An existing transport is wrapped; a client without one is based on
// [net/http.DefaultTransport].
func AddAuthorizationMiddleware(client *http.Client, creds *auth.Credentials) error {
	if client == nil || creds == nil {
		return fmt.Errorf("httptransport: client and creds must not be nil")
	}
	base := client.Transport
	if base == nil {
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			base = dt.Clone()
		} else {
			base = http.DefaultTransport
		}
	}
	client.Transport = &authTransport{
		creds: creds,
		base:  base,
	}
	return nil
}
