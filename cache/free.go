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
	"github.com/coocood/freecache"
)

// FreeCache is an alternative bounded cache with strict memory limits.
type FreeCache struct {
	cached *freecache.Cache
}

func NewFreeCache(maxBytes int) *FreeCache {
	return &FreeCache{cached: freecache.NewCache(maxBytes)}
}

func (c FreeCache) Get(key []byte) ([]byte, bool) {
	value, err := c.cached.Get(key)
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *FreeCache) Put(key, value []byte) {
	// zero expiry: content-addressed entries never go stale
	_ = c.cached.Set(key, value, 0)
}

func (c FreeCache) Size() int {
	return int(c.cached.EntryCount())
}
