/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package engine

import (
	"time"

	"github.com/bbva/verikv/cache"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/storage"
)

const (
	defaultRetries = 5
	defaultBackoff = 10 * time.Millisecond
)

type Option func(*Engine)

// WithHasher selects the hash function used for key digests, node
// digests and value addressing. All parties verifying proofs for a
// store must agree on it.
func WithHasher(hasherF func() hashing.Hasher) Option {
	return func(e *Engine) {
		e.hasherF = hasherF
	}
}

// WithRetries sets the retry budget for conflicted or transiently
// failing commits. A budget of n allows n+1 attempts in total.
func WithRetries(n int) Option {
	return func(e *Engine) {
		e.retries = n
	}
}

// WithBackoff sets the base delay between attempts after a transient
// backend failure; the delay doubles per attempt. Zero disables waiting.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.backoff = d
	}
}

// WithCache routes node reads and writes through the given cache. Head
// operations always go to the raw adapter; caching them would defeat
// the compare-and-swap.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) {
		e.nodes = cache.NewCachedStore(e.store, c)
	}
}

// WithNodeStore substitutes the store used for node traffic, leaving
// head operations on the raw adapter. Used by tests to inject faults.
func WithNodeStore(s storage.Store) Option {
	return func(e *Engine) {
		e.nodes = s
	}
}

// WithClock substitutes the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
