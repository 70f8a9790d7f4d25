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

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/googleapis/google-auth-go/internal/jwt"
)

func TestToken_isValidWithEarlyExpiry(t *testing.T) {
	now := time.Now()
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	tests := []struct {
		name   string
		tok    *Token
		expiry time.Duration
		want   bool
	}{
		{name: "nil token", tok: nil, want: false},
		{name: "no value", tok: &Token{}, want: false},
		{name: "no expiry", tok: &Token{Value: "au"}, want: true},
		{
			name:   "not expired",
			tok:    &Token{Value: "au", Expiry: now.Add(time.Hour)},
			expiry: defaultExpiryDelta,
			want:   true,
		},
		{
			name:   "expired",
			tok:    &Token{Value: "au", Expiry: now.Add(-time.Hour)},
			expiry: defaultExpiryDelta,
			want:   false,
		},
		{
			name:   "expires within early window",
			tok:    &Token{Value: "au", Expiry: now.Add(5 * time.Second)},
			expiry: defaultExpiryDelta,
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.isValidWithEarlyExpiry(tt.expiry); got != tt.want {
				t.Errorf("isValidWithEarlyExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

type countingTestProvider struct {
	mu    sync.Mutex
	count int
	tok   *Token
	err   error
}

func (tp *countingTestProvider) Token(ctx context.Context) (*Token, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.count++
	if tp.err != nil {
		return nil, tp.err
	}
	return tp.tok, nil
}

func (tp *countingTestProvider) calls() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.count
}

func TestCachedTokenProvider_CachesValidToken(t *testing.T) {
	inner := &countingTestProvider{tok: &Token{Value: "token", Expiry: time.Now().Add(time.Hour)}}
	tp := NewCachedTokenProvider(inner, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		tok, err := tp.Token(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if tok.Value != "token" {
			t.Fatalf("Token() = %q, want %q", tok.Value, "token")
		}
	}
	if got := inner.calls(); got != 1 {
		t.Errorf("underlying provider calls = %d, want 1", got)
	}
}

func TestCachedTokenProvider_RefreshesExpiredToken(t *testing.T) {
	inner := &countingTestProvider{tok: &Token{Value: "stale", Expiry: time.Now().Add(-time.Minute)}}
	tp := NewCachedTokenProvider(inner, nil)
	ctx := context.Background()
	if _, err := tp.Token(ctx); err != nil {
		t.Fatal(err)
	}
	inner.mu.Lock()
	inner.tok = &Token{Value: "fresh", Expiry: time.Now().Add(time.Hour)}
	inner.mu.Unlock()
	tok, err := tp.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tok.Value != "fresh" {
		t.Errorf("Token() = %q, want %q", tok.Value, "fresh")
	}
	// Every read of the expired token triggered a refresh.
	if got := inner.calls(); got != 2 {
		t.Errorf("underlying provider calls = %d, want 2", got)
	}
}

func TestCachedTokenProvider_FailedRefreshReported(t *testing.T) {
	inner := &countingTestProvider{tok: &Token{Value: "first", Expiry: time.Now().Add(-time.Minute)}}
	tp := NewCachedTokenProvider(inner, nil)
	ctx := context.Background()
	// Seed the cache with an (already expired) token.
	if _, err := tp.Token(ctx); err != nil {
		t.Fatal(err)
	}
	wantErr := errors.New("exchange unreachable")
	inner.mu.Lock()
	inner.err = wantErr
	inner.mu.Unlock()
	if _, err := tp.Token(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("Token() error = %v, want %v", err, wantErr)
	}
	// The failure did not corrupt cached state: once the underlying provider
	// recovers, the provider serves its token again.
	inner.mu.Lock()
	inner.err = nil
	inner.tok = &Token{Value: "recovered", Expiry: time.Now().Add(time.Hour)}
	inner.mu.Unlock()
	tok, err := tp.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tok.Value != "recovered" {
		t.Errorf("Token() = %q, want %q", tok.Value, "recovered")
	}
}

func TestCachedTokenProvider_ConcurrentReads(t *testing.T) {
	inner := &countingTestProvider{tok: &Token{Value: "token", Expiry: time.Now().Add(time.Hour)}}
	tp := NewCachedTokenProvider(inner, nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tp.Token(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := inner.calls(); got != 1 {
		t.Errorf("underlying provider calls = %d, want 1", got)
	}
}

func TestCachedTokenProvider_DisableAutoRefresh(t *testing.T) {
	inner := &countingTestProvider{tok: &Token{Value: "stale", Expiry: time.Now().Add(-time.Minute)}}
	tp := NewCachedTokenProvider(inner, &CachedTokenProviderOptions{DisableAutoRefresh: true})
	ctx := context.Background()
	if _, err := tp.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := tp.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if got := inner.calls(); got != 1 {
		t.Errorf("underlying provider calls = %d, want 1", got)
	}
}

func testPrivateKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(pk)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), pk
}

func TestNew2LOTokenProvider(t *testing.T) {
	keyPEM, pk := testPrivateKeyPEM(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if got, want := r.Form.Get("grant_type"), defaultGrantType; got != want {
			t.Errorf("grant_type = %q, want %q", got, want)
		}
		assertion := r.Form.Get("assertion")
		if err := jwt.VerifyJWS(assertion, &pk.PublicKey); err != nil {
			t.Errorf("assertion not signed by configured key: %v", err)
		}
		claims, err := jwt.DecodeJWS(assertion)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := claims.Iss, "sa@robot.test"; got != want {
			t.Errorf("iss = %q, want %q", got, want)
		}
		if got, want := claims.Scope, "scope1 scope2"; got != want {
			t.Errorf("scope = %q, want %q", got, want)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "90d64460d14870c08c81352a05dedd3465940a7c", "token_type": "bearer", "expires_in": 3600}`)
	}))
	defer ts.Close()

	tp, err := New2LOTokenProvider(&Options2LO{
		Email:        "sa@robot.test",
		PrivateKey:   keyPEM,
		PrivateKeyID: "key-id",
		TokenURL:     ts.URL,
		Scopes:       []string{"scope1", "scope2"},
		Client:       ts.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tok, err := tp.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := tok.Value, "90d64460d14870c08c81352a05dedd3465940a7c"; got != want {
		t.Errorf("token = %q, want %q", got, want)
	}
	if got, want := tok.Type, "bearer"; got != want {
		t.Errorf("token type = %q, want %q", got, want)
	}
	if tok.Expiry.IsZero() {
		t.Error("token expiry not set")
	}
}

func TestNew2LOTokenProvider_BadResponse(t *testing.T) {
	keyPEM, _ := testPrivateKeyPEM(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "grant expired"}`)
	}))
	defer ts.Close()

	tp, err := New2LOTokenProvider(&Options2LO{
		Email:      "sa@robot.test",
		PrivateKey: keyPEM,
		TokenURL:   ts.URL,
		Client:     ts.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tp.Token(context.Background())
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("Token() error = %T, want *auth.Error", err)
	}
	if got, want := authErr.Error(), `auth: "invalid_grant" "grant expired"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNew2LOTokenProvider_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts *Options2LO
	}{
		{name: "nil opts"},
		{name: "missing email", opts: &Options2LO{PrivateKey: []byte("key"), TokenURL: "url"}},
		{name: "missing key", opts: &Options2LO{Email: "e", TokenURL: "url"}},
		{name: "missing token url", opts: &Options2LO{Email: "e", PrivateKey: []byte("key")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New2LOTokenProvider(tt.opts); err == nil {
				t.Error("New2LOTokenProvider() = nil, want error")
			}
		})
	}
}

func TestNew3LOTokenProvider_RefreshGrant(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if got, want := r.Form.Get("grant_type"), "refresh_token"; got != want {
			t.Errorf("grant_type = %q, want %q", got, want)
		}
		if got, want := r.Form.Get("refresh_token"), "refreshing"; got != want {
			t.Errorf("refresh_token = %q, want %q", got, want)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "at", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer ts.Close()

	tp, err := New3LOTokenProvider(&Options3LO{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refreshing",
		TokenURL:     ts.URL,
		Client:       ts.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tok, err := tp.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := tok.Value, "at"; got != want {
		t.Errorf("token = %q, want %q", got, want)
	}
}

func TestNew3LOTokenProvider_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts *Options3LO
	}{
		{name: "nil opts"},
		{name: "missing client id", opts: &Options3LO{ClientSecret: "s", RefreshToken: "r", TokenURL: "u"}},
		{name: "missing secret", opts: &Options3LO{ClientID: "c", RefreshToken: "r", TokenURL: "u"}},
		{name: "missing refresh token", opts: &Options3LO{ClientID: "c", ClientSecret: "s", TokenURL: "u"}},
		{name: "missing token url", opts: &Options3LO{ClientID: "c", ClientSecret: "s", RefreshToken: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New3LOTokenProvider(tt.opts); err == nil {
				t.Error("New3LOTokenProvider() = nil, want error")
			}
		})
	}
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		name string
		code int
		want bool
	}{
		{name: "temporary with 500", code: http.StatusInternalServerError, want: true},
		{name: "temporary with 503", code: http.StatusServiceUnavailable, want: true},
		{name: "temporary with 408", code: http.StatusRequestTimeout, want: true},
		{name: "temporary with 429", code: http.StatusTooManyRequests, want: true},
		{name: "not temporary with 404", code: http.StatusNotFound, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Error{Response: &http.Response{StatusCode: tt.code}}
			if got := e.Temporary(); got != tt.want {
				t.Errorf("Temporary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentials_WithScopesUnsupported(t *testing.T) {
	creds := NewCredentials(&CredentialsOptions{
		TokenProvider: &countingTestProvider{tok: &Token{Value: "t"}},
	})
	if _, err := creds.WithScopes("scope1"); err == nil {
		t.Error("WithScopes() = nil, want error")
	}
}

func TestCredentials_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]string{"type": "authorized_user"})
	if err != nil {
		t.Fatal(err)
	}
	creds := NewCredentials(&CredentialsOptions{
		TokenProvider: &countingTestProvider{tok: &Token{Value: "t"}},
		JSON:          b,
	})
	if got := creds.JSON(); string(got) != string(b) {
		t.Errorf("JSON() = %s, want %s", got, b)
	}
}
