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

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/storage/bplus"
)

func TestCaches(t *testing.T) {

	testCases := []struct {
		name  string
		cache Cache
	}{
		{"simple", NewSimpleCache(16)},
		{"fastcache", NewFastCache(1 << 20)},
		{"freecache", NewFreeCache(1 << 20)},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			_, ok := c.cache.Get([]byte("missing-key-0123456789"))
			assert.False(t, ok)

			c.cache.Put([]byte("a-key-long-enough-0123"), []byte("a value"))
			value, ok := c.cache.Get([]byte("a-key-long-enough-0123"))
			require.True(t, ok)
			assert.Equal(t, []byte("a value"), value)
			assert.Equal(t, 1, c.cache.Size())
		})
	}
}

func TestPassthroughCache(t *testing.T) {
	cache := NewPassthroughCache()
	cache.Put([]byte("key"), []byte("value"))
	_, ok := cache.Get([]byte("key"))
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

// countingStore counts backend reads so tests can observe cache hits.
type countingStore struct {
	storage.Store
	gets int
}

func (s *countingStore) GetNode(digest []byte) ([]byte, error) {
	s.gets++
	return s.Store.GetNode(digest)
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := &countingStore{Store: bplus.NewBPlusTreeStore()}
	store := NewCachedStore(inner, NewSimpleCache(16))

	require.NoError(t, inner.PutNodes([]storage.Node{storage.NewNode([]byte("d1"), []byte("bytes"))}))

	value, err := store.GetNode([]byte("d1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), value)
	assert.Equal(t, 1, inner.gets)

	// second read is served from the cache
	value, err = store.GetNode([]byte("d1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), value)
	assert.Equal(t, 1, inner.gets)

	_, err = store.GetNode([]byte("missing"))
	assert.Equal(t, storage.ErrKeyNotFound, err)
}

func TestCachedStorePopulatesOnWrite(t *testing.T) {
	inner := &countingStore{Store: bplus.NewBPlusTreeStore()}
	store := NewCachedStore(inner, NewSimpleCache(16))

	require.NoError(t, store.PutNodes([]storage.Node{storage.NewNode([]byte("d1"), []byte("bytes"))}))

	value, err := store.GetNode([]byte("d1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), value)
	assert.Equal(t, 0, inner.gets, "A freshly written node must be served from the cache")
}
