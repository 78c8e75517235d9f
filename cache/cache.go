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

// Package cache implements read-through caches for content-addressed nodes.
// Cached entries are keyed by digest and immutable, so there is nothing to
// invalidate: a digest either resolves to its bytes or is absent.
package cache

type Cache interface {
	Get(key []byte) ([]byte, bool)
	Put(key, value []byte)
	Size() int
}

// SimpleCache is an unbounded map cache. Handy for tests and small trees.
type SimpleCache struct {
	cached map[string][]byte
}

func NewSimpleCache(initialSize uint64) *SimpleCache {
	return &SimpleCache{cached: make(map[string][]byte, initialSize)}
}

func (c SimpleCache) Get(key []byte) ([]byte, bool) {
	value, ok := c.cached[string(key)]
	return value, ok
}

func (c *SimpleCache) Put(key, value []byte) {
	c.cached[string(key)] = value
}

func (c SimpleCache) Size() int {
	return len(c.cached)
}

// PassthroughCache caches nothing.
type PassthroughCache struct{}

func NewPassthroughCache() PassthroughCache {
	return PassthroughCache{}
}

func (c PassthroughCache) Get(key []byte) ([]byte, bool) { return nil, false }
func (c PassthroughCache) Put(key, value []byte)         {}
func (c PassthroughCache) Size() int                     { return 0 }
