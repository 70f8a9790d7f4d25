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

// Package credsfile is meant to hide implementation details from the pubic
// surface of the detect package. It should not import any other packages in
// this module. It is located under the main internal package so other
// sub-packages can use these parsed types as well.
package credsfile

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

const (
	// CredentialsEnvVar is the environment variable pointing at a credential
	// file to use instead of running detection.
	CredentialsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

	// Config directory and file name used by the gcloud CLI when writing the
	// well-known credential file.
	configDir           = "gcloud"
	wellKnownFileName   = "application_default_credentials.json"
	appDataEnvVar       = "APPDATA"
	guessedUnixHomeEnv  = "HOME"
	userConfigParentDir = ".config"
)

// GOOS is a var so the well-known path branches can be tested on any host OS.
var GOOS = runtime.GOOS

// GetFileNameFromEnv returns the override if provided or detects a filename
// from the environment.
func GetFileNameFromEnv(override string) string {
	if override != "" {
		return override
	}
	return os.Getenv(CredentialsEnvVar)
}

// GetWellKnownFileName tries to locate the filepath for the user credential
// file based on the environment: %APPDATA%/gcloud on Windows-like platforms,
// $HOME/.config/gcloud elsewhere.
func GetWellKnownFileName() string {
	if GOOS == "windows" {
		return filepath.Join(os.Getenv(appDataEnvVar), configDir, wellKnownFileName)
	}
	return filepath.Join(guessUnixHomeDir(), userConfigParentDir, configDir, wellKnownFileName)
}

func guessUnixHomeDir() string {
	// Prefer $HOME over user.Current due to glibc bug: golang.org/issue/13470
	if v := os.Getenv(guessedUnixHomeEnv); v != "" {
		return v
	}
	// Else, fall back to user.Current:
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}
