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

// Package mtls decides whether an outbound transport should present a client
// certificate, and where that certificate comes from. The decision is made
// once, at transport construction time, and is independent of credential
// detection.
package mtls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Env vars gating client certificate usage. For details, see AIP-4114.
const (
	useClientCertEnv = "GOOGLE_API_USE_CLIENT_CERTIFICATE"
	certConfigEnv    = "GOOGLE_API_CERTIFICATE_CONFIG"
)

// ErrSourceUnavailable is a sentinel for a certificate source that is not
// provisioned on this machine, as opposed to one that is present but broken.
var ErrSourceUnavailable = errors.New("mtls: certificate source is unavailable")

// Source supplies a client certificate during a TLS handshake. It has the
// signature of [crypto/tls.Config.GetClientCertificate].
type Source func(*tls.CertificateRequestInfo) (*tls.Certificate, error)

// Provider supplies the inputs of the trust decision. Implementations answer
// whether a client certificate should be used at all, and hand out the
// explicitly configured source or load the machine's default one.
type Provider interface {
	// UseClientCertificate reports whether the caller wants outbound
	// connections to present a client certificate.
	UseClientCertificate() bool
	// ClientCertificateSource returns an explicitly configured source, or
	// nil if none was configured. Errors are fatal: an explicit source that
	// cannot be produced must not be silently replaced.
	ClientCertificateSource() (Source, error)
	// DefaultCertificateSource loads the machine's default source. It
	// returns [ErrSourceUnavailable] when none is provisioned.
	DefaultCertificateSource() (Source, error)
}

// Config is the outcome of [SelectTrust], consumed by transport construction.
type Config struct {
	// UseClientCertificate reports whether the transport should be built
	// with a client certificate. When true, Source is non-nil.
	UseClientCertificate bool
	// Source supplies the certificate. Wire it into
	// [crypto/tls.Config.GetClientCertificate].
	Source Source
}

// SelectTrust resolves the provider's inputs into a [Config].
//
// If the provider does not want a client certificate the result is "no
// certificate" regardless of what sources exist. Otherwise an explicitly
// configured source wins; if producing it fails, SelectTrust fails, since the
// caller asked for a specific certificate. With no explicit source the
// provider's default is loaded, and a default that is absent or fails to load
// degrades to "no certificate" instead of failing the transport build, so
// opportunistic mTLS never breaks callers without a provisioned certificate.
func SelectTrust(p Provider) (*Config, error) {
	if p == nil || !p.UseClientCertificate() {
		return &Config{}, nil
	}
	source, err := p.ClientCertificateSource()
	if err != nil {
		return nil, fmt.Errorf("mtls: failed to load the configured client certificate: %w", err)
	}
	if source != nil {
		return &Config{UseClientCertificate: true, Source: source}, nil
	}
	source, err = p.DefaultCertificateSource()
	if err != nil || source == nil {
		return &Config{}, nil
	}
	return &Config{UseClientCertificate: true, Source: source}, nil
}

// EnvProvider is a [Provider] driven by environment configuration: the
// GOOGLE_API_USE_CLIENT_CERTIFICATE variable gates certificate usage, and the
// default source is the workload certificate configuration at its well-known
// gcloud location. The zero value is ready to use.
type EnvProvider struct {
	// Source is an explicitly supplied certificate source. Optional.
	Source Source
	// ConfigFilePath points at a specific workload certificate
	// configuration file instead of the well-known location. Optional.
	ConfigFilePath string
}

func (p *EnvProvider) UseClientCertificate() bool {
	return strings.EqualFold(os.Getenv(useClientCertEnv), "true")
}

func (p *EnvProvider) ClientCertificateSource() (Source, error) {
	if p.Source != nil {
		return p.Source, nil
	}
	if p.ConfigFilePath != "" {
		return NewWorkloadCertSource(p.ConfigFilePath)
	}
	return nil, nil
}

func (p *EnvProvider) DefaultCertificateSource() (Source, error) {
	return NewWorkloadCertSource("")
}
