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

package metadata

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
)

const maxRetryAttempts = 5

// metadataRetryer bounds retries of metadata lookups: transient failures are
// retried with jittered backoff up to maxRetryAttempts, everything else is
// surfaced immediately.
type metadataRetryer struct {
	bo       gax.Backoff
	attempts int
}

func newRetryer() *metadataRetryer {
	return &metadataRetryer{bo: gax.Backoff{
		Initial: 100 * time.Millisecond,
		Max:     time.Second,
	}}
}

func (r *metadataRetryer) Retry(status int, err error) (time.Duration, bool) {
	if status == http.StatusOK {
		return 0, false
	}
	retryOk := shouldRetry(status, err)
	if !retryOk {
		return 0, false
	}
	if r.attempts == maxRetryAttempts {
		return 0, false
	}
	r.attempts++
	return r.bo.Pause(), true
}

// Set on Linux, where connection-level resets from the metadata server are
// observable as raw syscall errors.
var syscallRetryable = func(err error) bool { return false }

func shouldRetry(status int, err error) bool {
	if 500 <= status && status <= 599 {
		return true
	}
	if err == io.ErrUnexpectedEOF {
		return true
	}
	// Transient network errors should be retried.
	if syscallRetryable(err) {
		return true
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	return false
}
