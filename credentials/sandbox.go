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
	"net/http"
	"sync"

	auth "github.com/googleapis/google-auth-go"
)

// SandboxProvider supplies credentials for a managed sandbox runtime, a
// platform whose identity surface is only reachable through its own adapter
// library. A runtime's adapter package registers a provider with
// [RegisterSandboxProvider], typically from an init function, so that
// detection can probe for the runtime without this package depending on it.
type SandboxProvider interface {
	// Available reports whether the process is running inside the provider's
	// runtime. It must be cheap: a capability check, not an instantiation of
	// runtime infrastructure.
	Available() bool
	// Credentials returns credentials bound to the provided client. It is
	// only called when Available reports true.
	Credentials(client *http.Client) (*auth.Credentials, error)
}

var (
	sandboxMu       sync.Mutex
	sandboxProvider SandboxProvider
)

// RegisterSandboxProvider makes a sandbox runtime's credentials discoverable
// by [Detector]. Only one provider may be registered per process; registering
// a second panics, matching the driver-registration convention.
func RegisterSandboxProvider(p SandboxProvider) {
	sandboxMu.Lock()
	defer sandboxMu.Unlock()
	if p == nil {
		panic("credentials: RegisterSandboxProvider called with nil provider")
	}
	if sandboxProvider != nil {
		panic("credentials: RegisterSandboxProvider called twice")
	}
	sandboxProvider = p
}

func registeredSandboxProvider() SandboxProvider {
	sandboxMu.Lock()
	defer sandboxMu.Unlock()
	return sandboxProvider
}
