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
	"github.com/bbva/verikv/storage"
)

// CachedStore layers a node cache in front of any backend adapter. Only
// GetNode and PutNodes go through the cache; head operations always reach
// the backend because the head is the single mutable datum.
type CachedStore struct {
	storage.Store
	cache Cache
}

func NewCachedStore(store storage.Store, cache Cache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

func (s *CachedStore) GetNode(digest []byte) ([]byte, error) {
	if value, ok := s.cache.Get(digest); ok {
		return value, nil
	}
	value, err := s.Store.GetNode(digest)
	if err != nil {
		return nil, err
	}
	s.cache.Put(digest, value)
	return value, nil
}

func (s *CachedStore) PutNodes(nodes []storage.Node) error {
	if err := s.Store.PutNodes(nodes); err != nil {
		return err
	}
	for _, n := range nodes {
		s.cache.Put(n.Digest, n.Bytes)
	}
	return nil
}
