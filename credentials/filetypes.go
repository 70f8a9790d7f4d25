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
	"errors"
	"fmt"

	auth "github.com/googleapis/google-auth-go"
	"github.com/googleapis/google-auth-go/internal/credsfile"
)

func fileCredentials(b []byte, opts *DetectOptions) (*auth.Credentials, error) {
	fileType, err := credsfile.ParseFileType(b)
	if err != nil {
		return nil, fmt.Errorf("credentials: invalid credential file: %w", err)
	}

	var tp auth.TokenProvider
	var newWithScopes func(scopes []string) (*auth.Credentials, error)
	switch fileType {
	case credsfile.ServiceAccountKey:
		f, err := credsfile.ParseServiceAccount(b)
		if err != nil {
			return nil, err
		}
		tp, err = handleServiceAccount(f, opts)
		if err != nil {
			return nil, err
		}
		// Narrowing re-parses the same key material into a fresh provider so
		// the returned credentials never share a token cell with this one.
		newWithScopes = func(scopes []string) (*auth.Credentials, error) {
			o := *opts
			o.Scopes = scopes
			o.Audience = ""
			return fileCredentials(b, &o)
		}
	case credsfile.UserCredentialsKey:
		f, err := credsfile.ParseUserCredentials(b)
		if err != nil {
			return nil, err
		}
		tp, err = handleUserCredential(f, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("credentials: unsupported filetype %q", credsfile.CredentialTypeString(fileType))
	}
	return auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: auth.NewCachedTokenProvider(tp, &auth.CachedTokenProviderOptions{
			ExpireEarly: opts.EarlyTokenRefresh,
		}),
		JSON:          b,
		NewWithScopes: newWithScopes,
	}), nil
}

func handleServiceAccount(f *credsfile.ServiceAccountFile, opts *DetectOptions) (auth.TokenProvider, error) {
	if f.ClientEmail == "" {
		return nil, errors.New("credentials: service account file missing 'client_email' field")
	}
	if f.PrivateKey == "" {
		return nil, errors.New("credentials: service account file missing 'private_key' field")
	}
	opts2LO := &auth.Options2LO{
		Email:        f.ClientEmail,
		PrivateKey:   []byte(f.PrivateKey),
		PrivateKeyID: f.PrivateKeyID,
		Scopes:       opts.scopes(),
		TokenURL:     f.TokenURL,
		Subject:      opts.Subject,
		Audience:     opts.Audience,
		Client:       opts.client(),
		Logger:       opts.Logger,
	}
	if opts2LO.TokenURL == "" {
		opts2LO.TokenURL = jwtTokenURL
	}
	return auth.New2LOTokenProvider(opts2LO)
}

func handleUserCredential(f *credsfile.UserCredentialsFile, opts *DetectOptions) (auth.TokenProvider, error) {
	if f.ClientID == "" || f.ClientSecret == "" || f.RefreshToken == "" {
		return nil, errors.New("credentials: authorized user file missing 'client_id', 'client_secret', or 'refresh_token' field")
	}
	opts3LO := &auth.Options3LO{
		ClientID:         f.ClientID,
		ClientSecret:     f.ClientSecret,
		RefreshToken:     f.RefreshToken,
		TokenURL:         opts.tokenURL(),
		EarlyTokenExpiry: opts.EarlyTokenRefresh,
		Client:           opts.client(),
		Logger:           opts.Logger,
	}
	return auth.New3LOTokenProvider(opts3LO)
}
