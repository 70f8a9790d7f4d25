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

// Package credentials discovers Application Default Credentials: the
// credentials a process uses when nothing was configured explicitly. It
// supports service account key files, user refresh credential files, sandbox
// runtime adapters, and hosted compute instance identities.
//
// # Credentials
//
// The [Credentials] returned by [DetectDefault] or a [Detector] are found, in
// order, from:
//
//   - A JSON file whose path is specified by the GOOGLE_APPLICATION_CREDENTIALS
//     environment variable. If this variable is set the named file must exist
//     and parse; later locations are never consulted.
//   - A JSON file in a location known to the gcloud command-line tool. On
//     Windows, this is %APPDATA%/gcloud/application_default_credentials.json.
//     On other systems, $HOME/.config/gcloud/application_default_credentials.json.
//   - A sandbox runtime registered with [RegisterSandboxProvider] whose
//     capability probe reports the process is running inside it.
//   - On hosted compute instances, the instance metadata server.
//
// A [Detector] resolves exactly once: whichever outcome the first resolution
// produced, success or failure, is replayed on every later call without
// re-probing any source.
package credentials
