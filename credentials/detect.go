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

package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/googleapis/gax-go/v2/internallog"
	auth "github.com/googleapis/google-auth-go"
	"github.com/googleapis/google-auth-go/internal"
	"github.com/googleapis/google-auth-go/internal/credsfile"
	"github.com/googleapis/google-auth-go/metadata"
)

const (
	// jwtTokenURL is Google's OAuth 2.0 token URL to use with the JWT(2LO) flow.
	jwtTokenURL = "https://oauth2.googleapis.com/token"

	// googleTokenURL is Google's OAuth 2.0 default token endpoint.
	googleTokenURL = "https://oauth2.googleapis.com/token"

	// Help on default credentials
	adcSetupURL = "https://developers.google.com/accounts/docs/application-default-credentials"
)

// DetectOptions provides configuration for [DetectDefault] and [NewDetector].
type DetectOptions struct {
	// Scopes that credentials tokens should have. Example:
	// https://www.googleapis.com/auth/cloud-platform. Required if Audience is
	// not provided.
	Scopes []string
	// Audience that credentials tokens should have. Only applicable for 2LO
	// flows with service accounts. If specified, scopes should not be
	// provided.
	Audience string
	// Subject is the user email used for domain wide delegation. Optional.
	Subject string
	// EarlyTokenRefresh configures how early before a token expires that it
	// should be refreshed. Optional.
	EarlyTokenRefresh time.Duration
	// TokenURL allows to set the token endpoint for user credential flows. If
	// unset the default value is: https://oauth2.googleapis.com/token.
	// Optional.
	TokenURL string
	// CredentialsFile overrides detection logic and sources a credential file
	// from the provided filepath. If provided, CredentialsJSON must not be.
	// Optional.
	CredentialsFile string
	// CredentialsJSON overrides detection logic and uses the JSON bytes as the
	// source for the credential. If provided, CredentialsFile must not be.
	// Optional.
	CredentialsJSON []byte
	// SandboxProvider overrides the provider registered with
	// [RegisterSandboxProvider] for the sandbox runtime probe. Optional.
	SandboxProvider SandboxProvider
	// Client configures the underlying client used to make network requests
	// when fetching tokens. Optional.
	Client *http.Client
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled.
	// Optional.
	Logger *slog.Logger
}

func (o *DetectOptions) validate() error {
	if o == nil {
		return errors.New("credentials: options must be provided")
	}
	if len(o.Scopes) > 0 && o.Audience != "" {
		return errors.New("credentials: both scopes and audience were provided")
	}
	if len(o.CredentialsJSON) > 0 && o.CredentialsFile != "" {
		return errors.New("credentials: both credentials file and JSON were provided")
	}
	return nil
}

func (o *DetectOptions) tokenURL() string {
	if o.TokenURL != "" {
		return o.TokenURL
	}
	return googleTokenURL
}

func (o *DetectOptions) scopes() []string {
	scopes := make([]string, len(o.Scopes))
	copy(scopes, o.Scopes)
	return scopes
}

func (o *DetectOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return internal.DefaultClient()
}

func (o *DetectOptions) logger() *slog.Logger {
	return internallog.New(o.Logger)
}

func (o *DetectOptions) sandboxProvider() SandboxProvider {
	if o.SandboxProvider != nil {
		return o.SandboxProvider
	}
	return registeredSandboxProvider()
}

// Detector searches for Application Default Credentials. A Detector resolves
// at most once: the outcome of the first call to [Detector.Detect], success or
// terminal failure, is cached and replayed for the life of the instance, and
// no discovery source is ever probed twice. Callers that want a process-wide
// credential share one Detector by reference.
//
// A Detector is safe for concurrent use.
type Detector struct {
	opts *DetectOptions

	mu    sync.Mutex
	done  atomic.Bool
	creds *auth.Credentials
	err   error
}

// NewDetector returns a [Detector] configured with the provided options.
func NewDetector(opts *DetectOptions) (*Detector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Detector{opts: opts}, nil
}

// Detect resolves Application Default Credentials. The first call runs the
// discovery chain; every later call returns the cached outcome without
// blocking on the mutex that serialized the initial resolution.
func (d *Detector) Detect() (*auth.Credentials, error) {
	if d.done.Load() {
		return d.creds, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.done.Load() {
		d.creds, d.err = d.detect()
		d.done.Store(true)
	}
	return d.creds, d.err
}

// DetectDefault searches for Application Default Credentials with a one-shot
// [Detector]. Callers that resolve more than once should hold on to a
// Detector instead so the result is cached.
func DetectDefault(opts *DetectOptions) (*auth.Credentials, error) {
	d, err := NewDetector(opts)
	if err != nil {
		return nil, err
	}
	return d.Detect()
}

func (d *Detector) detect() (*auth.Credentials, error) {
	opts := d.opts
	if len(opts.CredentialsJSON) > 0 {
		return fileCredentials(opts.CredentialsJSON, opts)
	}

	// An explicitly configured file is authoritative, not advisory: if the
	// pointer is set the file must exist, and no later source is consulted.
	if filename := credsfile.GetFileNameFromEnv(opts.CredentialsFile); filename != "" {
		b, err := os.ReadFile(filename)
		if err != nil {
			absPath, pathErr := filepath.Abs(filename)
			if pathErr != nil {
				absPath = filename
			}
			if opts.CredentialsFile != "" {
				return nil, fmt.Errorf("credentials: file %q could not be read: %w", absPath, err)
			}
			return nil, fmt.Errorf("credentials: %s points to file %q which could not be read: %w", credsfile.CredentialsEnvVar, absPath, err)
		}
		return fileCredentials(b, opts)
	}

	// A corrupt well-known file is not silently skipped: once the file is
	// found, this step is authoritative.
	if filename := credsfile.GetWellKnownFileName(); fileExists(filename) {
		b, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		return fileCredentials(b, opts)
	}

	if p := opts.sandboxProvider(); p != nil && p.Available() {
		return p.Credentials(opts.client())
	}

	mdClient := metadata.NewWithOptions(&metadata.Options{
		Client: opts.client(),
		Logger: opts.Logger,
	})
	if mdClient.OnGCE(context.Background()) {
		return computeCredentials(opts, mdClient), nil
	}

	return nil, fmt.Errorf("credentials: could not find default credentials. See %v for more information", adcSetupURL)
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
