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

// Package auth provides bearer credentials for calling authenticated APIs:
// tokens, token providers with cached concurrency-safe refresh, and the
// exchange flows backing service account keys, user refresh credentials, and
// hosted-compute identities. Credential discovery lives in the credentials
// package; transport construction in httptransport.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/googleapis/google-auth-go/internal"
	"github.com/googleapis/google-auth-go/internal/jwt"
)

const (
	defaultExpiryDelta = 10 * time.Second
)

var (
	defaultGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	defaultHeader    = &jwt.Header{Algorithm: jwt.HeaderAlgRSA256, Type: jwt.HeaderType}

	// for testing
	timeNow = time.Now
)

// TokenProvider specifies an interface for anything that can return a token.
type TokenProvider interface {
	// Token returns a Token or an error.
	// The Token returned must be safe to use
	// concurrently.
	// The returned Token must not be modified.
	// The context provided must be sent along to any requests that are made in
	// the implementing code.
	Token(context.Context) (*Token, error)
}

// Token holds the credential token used to authorize requests. All fields are
// considered read-only.
type Token struct {
	// Value is the token used to authorize requests. It is usually an access
	// token but may be other types of tokens such as ID tokens in some flows.
	Value string
	// Type is the type of token Value is. If uninitialized, it should be
	// assumed to be a "Bearer" token.
	Type string
	// Expiry is the time the token is set to expire.
	Expiry time.Time
	// Metadata may include, but is not limited to, the body of the token
	// response returned by the server.
	Metadata map[string]interface{}
}

// IsValid reports that a [Token] is non-nil, has a [Token.Value], and has not
// expired. A token is considered expired if [Token.Expiry] has passed or will
// pass in the next 10 seconds.
func (t *Token) IsValid() bool {
	return t.isValidWithEarlyExpiry(defaultExpiryDelta)
}

func (t *Token) isValidWithEarlyExpiry(earlyExpiry time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return !t.Expiry.Round(0).Add(-earlyExpiry).Before(timeNow())
}

// CachedTokenProviderOptions provides options for configuring a cached
// [TokenProvider].
type CachedTokenProviderOptions struct {
	// DisableAutoRefresh makes the TokenProvider always return the same token,
	// even if it is expired.
	DisableAutoRefresh bool
	// ExpireEarly configures the amount of time before a token expires, that it
	// should be refreshed. If unset, the default value is 10 seconds.
	ExpireEarly time.Duration
}

func (ctpo *CachedTokenProviderOptions) autoRefresh() bool {
	if ctpo == nil {
		return true
	}
	return !ctpo.DisableAutoRefresh
}

func (ctpo *CachedTokenProviderOptions) expireEarly() time.Duration {
	if ctpo == nil || ctpo.ExpireEarly == 0 {
		return defaultExpiryDelta
	}
	return ctpo.ExpireEarly
}

// NewCachedTokenProvider wraps a [TokenProvider] to cache the tokens returned
// by the underlying provider. By default it will refresh tokens early: a read
// that finds the cached token missing or within the expiry window performs a
// synchronous refresh before returning. A failed refresh is reported to the
// caller and leaves any previously cached token untouched; reads of a valid
// token never trigger network activity.
func NewCachedTokenProvider(tp TokenProvider, opts *CachedTokenProviderOptions) TokenProvider {
	if ctp, ok := tp.(*cachedTokenProvider); ok {
		return ctp
	}
	return &cachedTokenProvider{
		tp:          tp,
		autoRefresh: opts.autoRefresh(),
		expireEarly: opts.expireEarly(),
	}
}

type cachedTokenProvider struct {
	tp          TokenProvider
	autoRefresh bool
	expireEarly time.Duration

	mu          sync.Mutex
	cachedToken *Token
}

func (c *cachedTokenProvider) Token(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedToken.isValidWithEarlyExpiry(c.expireEarly) || !c.autoRefresh {
		return c.cachedToken, nil
	}
	t, err := c.tp.Token(ctx)
	if err != nil {
		// Do not clear the previous token: the refresh failed, it did not
		// revoke anything.
		return nil, err
	}
	c.cachedToken = t
	return t, nil
}

// Error is an error associated with retrieving a [Token]. It can hold useful
// additional details for debugging.
type Error struct {
	// Response is the HTTP response associated with error. The body will always
	// be already closed and consumed.
	Response *http.Response
	// Body is the HTTP response body.
	Body []byte
	// Err is the underlying wrapped error.
	Err error

	// code returned in the token response
	code string
	// description returned in the token response
	description string
	// uri returned in the token response
	uri string
}

func (e *Error) Error() string {
	if e.code != "" {
		s := fmt.Sprintf("auth: %q", e.code)
		if e.description != "" {
			s += fmt.Sprintf(" %q", e.description)
		}
		if e.uri != "" {
			s += fmt.Sprintf(" %q", e.uri)
		}
		return s
	}
	if e.Response != nil {
		return fmt.Sprintf("auth: cannot fetch token: %v\nResponse: %s", e.Response.StatusCode, e.Body)
	}
	return fmt.Sprintf("auth: cannot fetch token: %v", e.Err)
}

// Temporary returns true if the error is considered temporary and may be able
// to be retried.
func (e *Error) Temporary() bool {
	if e.Response == nil {
		return false
	}
	sc := e.Response.StatusCode
	return sc == http.StatusInternalServerError ||
		sc == http.StatusServiceUnavailable ||
		sc == http.StatusRequestTimeout ||
		sc == http.StatusTooManyRequests
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorFromResponse(resp *http.Response, body []byte) *Error {
	e := &Error{
		Response: resp,
		Body:     body,
	}
	// From the RFC 6749 token error response; fields are optional.
	var s struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
		URI         string `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &s); err == nil {
		e.code = s.Code
		e.description = s.Description
		e.uri = s.URI
	}
	return e
}

// Credentials represents a set of credentials: a [TokenProvider] together with
// the JSON material it was built from, if any. Instances are produced by the
// detection logic in the credentials package and are safe for concurrent use.
type Credentials struct {
	json []byte

	newWithScopes func(scopes []string) (*Credentials, error)

	TokenProvider
}

// JSON returns the bytes associated with the file used to source credentials,
// if one was used.
func (c *Credentials) JSON() []byte {
	return c.json
}

// WithScopes returns new, independent credentials narrowed to the provided
// scopes. The returned credentials share the underlying key material but none
// of the mutable token state: a refresh through one never updates the token
// visible through the other. An error is returned for credential types that do
// not support narrowing, such as user refresh credentials.
func (c *Credentials) WithScopes(scopes ...string) (*Credentials, error) {
	if c.newWithScopes == nil {
		return nil, errors.New("auth: credentials do not support scope narrowing")
	}
	s := make([]string, len(scopes))
	copy(s, scopes)
	return c.newWithScopes(s)
}

// CredentialsOptions are used to configure [Credentials].
type CredentialsOptions struct {
	// TokenProvider is a means of sourcing a token for the credentials.
	// Required.
	TokenProvider TokenProvider
	// JSON is the raw contents of the credentials file. Optional.
	JSON []byte
	// NewWithScopes rebuilds the credentials narrowed to a scope set. It must
	// return credentials with independent token state. Optional; credential
	// types that cannot be narrowed leave it unset.
	NewWithScopes func(scopes []string) (*Credentials, error)
}

// NewCredentials returns new [Credentials] from the provided options.
func NewCredentials(opts *CredentialsOptions) *Credentials {
	return &Credentials{
		TokenProvider: opts.TokenProvider,
		json:          opts.JSON,
		newWithScopes: opts.NewWithScopes,
	}
}

// Options2LO is the configuration settings for doing a 2-legged JWT OAuth2
// flow.
type Options2LO struct {
	// Email is the OAuth2 client ID. This value is set as the "iss" in the
	// JWT.
	Email string
	// PrivateKey contains the contents of an RSA private key or the
	// contents of a PEM file that contains a private key. It is used to sign
	// the JWT created.
	PrivateKey []byte
	// PrivateKeyID is the ID of the key used to sign the JWT. It is used as
	// the "kid" in the JWT header.
	PrivateKeyID string
	// TokenURL is the URL the JWT is sent to.
	TokenURL string
	// Subject is the user email used for domain wide delegation. Optional.
	Subject string
	// Scopes specifies requested permissions for the token. Optional.
	Scopes []string
	// Expires specifies the lifetime of the token. Optional.
	Expires time.Duration
	// Audience specifies the "aud" in the JWT. Optional.
	Audience string

	// Client is the client to be used to make the underlying token requests.
	// Optional.
	Client *http.Client
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled. Optional.
	Logger *slog.Logger
}

func (o *Options2LO) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return internal.DefaultClient()
}

func (o *Options2LO) validate() error {
	if o == nil {
		return errors.New("auth: options must be provided")
	}
	if o.Email == "" {
		return errors.New("auth: email must be provided")
	}
	if len(o.PrivateKey) == 0 {
		return errors.New("auth: private key must be provided")
	}
	if o.TokenURL == "" {
		return errors.New("auth: token URL must be provided")
	}
	return nil
}

// New2LOTokenProvider returns a [TokenProvider] from the provided options.
func New2LOTokenProvider(opts *Options2LO) (TokenProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return tokenProvider2LO{opts: opts, Client: opts.client(), logger: internallog.New(opts.Logger)}, nil
}

type tokenProvider2LO struct {
	opts   *Options2LO
	Client *http.Client
	logger *slog.Logger
}

func (tp tokenProvider2LO) Token(ctx context.Context) (*Token, error) {
	pk, err := internal.ParseKey(tp.opts.PrivateKey)
	if err != nil {
		return nil, err
	}
	claimSet := &jwt.Claims{
		Iss:   tp.opts.Email,
		Scope: strings.Join(tp.opts.Scopes, " "),
		Aud:   tp.opts.TokenURL,
	}
	if subject := tp.opts.Subject; subject != "" {
		claimSet.Sub = subject
	}
	if t := tp.opts.Expires; t > 0 {
		claimSet.Exp = time.Now().Add(t).Unix()
	}
	if aud := tp.opts.Audience; aud != "" {
		claimSet.Aud = aud
	}
	h := *defaultHeader
	h.KeyID = tp.opts.PrivateKeyID
	payload, err := jwt.EncodeJWS(&h, claimSet, pk)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("grant_type", defaultGrantType)
	v.Set("assertion", payload)
	return fetchToken(ctx, tp.Client, tp.logger, tp.opts.TokenURL, v)
}

// Options3LO are the options for doing a 3-legged OAuth2 flow based on a
// stored refresh token. The interactive authorization-code leg that mints the
// refresh token is out of scope for this module.
type Options3LO struct {
	// ClientID is the application's ID.
	ClientID string
	// ClientSecret is the application's secret.
	ClientSecret string
	// RefreshToken is the long-lived secret exchanged for access tokens.
	RefreshToken string
	// TokenURL is the URL the refresh token is sent to.
	TokenURL string
	// EarlyTokenExpiry is the time before the token expires that it should be
	// refreshed. Optional.
	EarlyTokenExpiry time.Duration

	// Client is the client to be used to make the underlying token requests.
	// Optional.
	Client *http.Client
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled. Optional.
	Logger *slog.Logger
}

func (o *Options3LO) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return internal.DefaultClient()
}

func (o *Options3LO) validate() error {
	if o == nil {
		return errors.New("auth: options must be provided")
	}
	if o.ClientID == "" {
		return errors.New("auth: client ID must be provided")
	}
	if o.ClientSecret == "" {
		return errors.New("auth: client secret must be provided")
	}
	if o.RefreshToken == "" {
		return errors.New("auth: refresh token must be provided")
	}
	if o.TokenURL == "" {
		return errors.New("auth: token URL must be provided")
	}
	return nil
}

// New3LOTokenProvider returns a [TokenProvider] based on the 3-legged OAuth2
// configuration. The returned TokenProvider caches and auto-refreshes tokens
// by default.
func New3LOTokenProvider(opts *Options3LO) (TokenProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return NewCachedTokenProvider(tokenProvider3LO{opts: opts, Client: opts.client(), logger: internallog.New(opts.Logger)}, &CachedTokenProviderOptions{
		ExpireEarly: opts.EarlyTokenExpiry,
	}), nil
}

type tokenProvider3LO struct {
	opts   *Options3LO
	Client *http.Client
	logger *slog.Logger
}

func (tp tokenProvider3LO) Token(ctx context.Context) (*Token, error) {
	v := url.Values{}
	v.Set("grant_type", "refresh_token")
	v.Set("client_id", tp.opts.ClientID)
	v.Set("client_secret", tp.opts.ClientSecret)
	v.Set("refresh_token", tp.opts.RefreshToken)
	return fetchToken(ctx, tp.Client, tp.logger, tp.opts.TokenURL, v)
}

// fetchToken performs a token exchange against tokenURL with the given form
// values and converts the response into a [Token].
func fetchToken(ctx context.Context, client *http.Client, logger *slog.Logger, tokenURL string, v url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(v.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	logger.DebugContext(ctx, "token exchange request", "request", internallog.HTTPRequest(req, []byte(v.Encode())))
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: cannot fetch token: %w", err)
	}
	logger.DebugContext(ctx, "token exchange response", "response", internallog.HTTPResponse(resp, body))
	if c := resp.StatusCode; c < http.StatusOK || c >= http.StatusMultipleChoices {
		return nil, errorFromResponse(resp, body)
	}
	// tokenRes is the JSON response body.
	var tokenRes struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenRes); err != nil {
		return nil, fmt.Errorf("auth: cannot fetch token: %w", err)
	}
	if tokenRes.AccessToken == "" {
		return nil, errors.New("auth: token response missing access_token")
	}
	token := &Token{
		Value: tokenRes.AccessToken,
		Type:  tokenRes.TokenType,
	}
	token.Metadata = make(map[string]interface{})
	json.Unmarshal(body, &token.Metadata) // no error checks for optional fields

	if secs := tokenRes.ExpiresIn; secs > 0 {
		token.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return token, nil
}
