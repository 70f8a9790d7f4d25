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

// Package metadata provides access to the hosted-compute instance metadata
// service. Requests only succeed from inside such an instance; the probe and
// all lookups are bounded so callers on other platforms fail fast.
package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/internallog"
)

const (
	// metadataIP is the documented metadata server IP address.
	metadataIP = "169.254.169.254"

	// metadataHostEnv is the environment variable specifying the GCE metadata
	// hostname. If empty, the default value of metadataIP is used instead.
	metadataHostEnv = "GCE_METADATA_HOST"

	flavorHeader = "Metadata-Flavor"
	flavorValue  = "Google"
)

// NotDefinedError is returned when requested metadata is not defined.
//
// The underlying string is the suffix after "/computeMetadata/v1/".
type NotDefinedError string

func (suffix NotDefinedError) Error() string {
	return fmt.Sprintf("metadata: GCE metadata %q not defined", string(suffix))
}

// Client provides metadata lookups bound to a specific http.Client.
type Client struct {
	hc     *http.Client
	logger *slog.Logger
}

// Options for configuring a [Client].
type Options struct {
	// Client is the HTTP client used to make requests. Optional.
	Client *http.Client
	// Logger is used for debug logging of requests and responses made to the
	// metadata server. Optional.
	Logger *slog.Logger
}

// NewClient returns a Client that can be used to fetch metadata. Returns the
// client that uses the specified http.Client for HTTP requests. If nil is
// specified, a default client with bounded timeouts is used.
func NewClient(c *http.Client) *Client {
	return NewWithOptions(&Options{Client: c})
}

// NewWithOptions returns a Client configured with the provided Options.
func NewWithOptions(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Dial: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).Dial,
			},
		}
	}
	return &Client{hc: client, logger: internallog.New(opts.Logger)}
}

// metadataHost returns the configured host for the metadata server, favoring
// the environment override so tests and proxies can stand in for it.
func metadataHost() string {
	if host := os.Getenv(metadataHostEnv); host != "" {
		return host
	}
	return metadataIP
}

// OnGCE reports whether this process is running on a hosted compute instance,
// determined by a single bounded probe of the metadata address. A negative
// result may simply mean the server was unreachable in time.
func (c *Client) OnGCE(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+metadataHost(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	res, err := c.hc.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.Header.Get(flavorHeader) == flavorValue
}

// GetWithContext returns a value from the metadata service. The suffix is
// appended to "http://${GCE_METADATA_HOST}/computeMetadata/v1/".
//
// If the requested metadata is not defined, the returned error will be of
// type NotDefinedError.
func (c *Client) GetWithContext(ctx context.Context, suffix string) (string, error) {
	// Using a fixed IP makes it very difficult to spoof the metadata service
	// in a container, which is an important use-case for local testing of
	// cloud deployments. To enable spoofing of the metadata service, the
	// environment variable GCE_METADATA_HOST is first inspected to decide
	// where metadata requests shall go.
	suffix = strings.TrimLeft(suffix, "/")
	u := "http://" + metadataHost() + "/computeMetadata/v1/" + suffix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(flavorHeader, flavorValue)
	req.Header.Set("User-Agent", userAgent)
	var res *http.Response
	var reqErr error
	var body []byte
	retryer := newRetryer()
	for {
		c.logger.DebugContext(ctx, "metadata request", "request", internallog.HTTPRequest(req, nil))
		res, reqErr = c.hc.Do(req)
		var code int
		if res != nil {
			code = res.StatusCode
			body, err = io.ReadAll(io.LimitReader(res.Body, 1<<20))
			if err != nil {
				res.Body.Close()
				return "", err
			}
			c.logger.DebugContext(ctx, "metadata response", "response", internallog.HTTPResponse(res, body))
			res.Body.Close()
		}
		if delay, shouldRetry := retryer.Retry(code, reqErr); shouldRetry {
			if err := gax.Sleep(ctx, delay); err != nil {
				return "", err
			}
			continue
		}
		break
	}
	if reqErr != nil {
		return "", reqErr
	}
	if res.StatusCode == http.StatusNotFound {
		return "", NotDefinedError(suffix)
	}
	if res.StatusCode != http.StatusOK {
		return "", &Error{Code: res.StatusCode, Message: string(body)}
	}
	return string(body), nil
}

// Error contains an error response from the server.
type Error struct {
	// Code is the HTTP response status code.
	Code int
	// Message is the server response message.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("metadata: compute Metadata Server returned status %d: %s", e.Code, e.Message)
}

// Version of this module, reported in the User-Agent header.
const Version = "0.1.0"

var userAgent = "google-auth-go/" + Version
