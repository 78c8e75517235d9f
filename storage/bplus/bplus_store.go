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

// Package bplus implements an in-memory backend adapter on a B+ tree.
// It backs unit tests and serves as the reference implementation of the
// storage contract.
package bplus

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/util"
)

const (
	nodePrefix  = byte(0x0)
	keyPrefix   = byte(0x1)
	epochPrefix = byte(0x2)
)

type BPlusTreeStore struct {
	mu   sync.Mutex
	db   *btree.BTree
	head *storage.Head
}

func NewBPlusTreeStore() *BPlusTreeStore {
	return &BPlusTreeStore{db: btree.New(2)}
}

func (s *BPlusTreeStore) GetNode(digest []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.db.Get(KVItem{prefixed(nodePrefix, digest), nil})
	if item == nil {
		return nil, storage.ErrKeyNotFound
	}
	return item.(KVItem).Value, nil
}

func (s *BPlusTreeStore) PutNodes(nodes []storage.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.db.ReplaceOrInsert(KVItem{prefixed(nodePrefix, n.Digest), n.Bytes})
	}
	return nil
}

func (s *BPlusTreeStore) GetHead() (*storage.Head, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		return nil, storage.ErrKeyNotFound
	}
	head := *s.head
	return &head, nil
}

func (s *BPlusTreeStore) CASHead(expectedRoot []byte, head *storage.Head) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.head == nil && expectedRoot != nil:
		return storage.ErrConflict
	case s.head != nil && !bytes.Equal(s.head.Root, expectedRoot):
		return storage.ErrConflict
	}
	h := *head
	s.head = &h
	s.db.ReplaceOrInsert(KVItem{prefixed(epochPrefix, util.Uint64AsBytes(head.Number)), head.Epoch})
	return nil
}

func (s *BPlusTreeStore) PutKeys(keys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.db.ReplaceOrInsert(KVItem{prefixed(keyPrefix, k), nil})
	}
	return nil
}

func (s *BPlusTreeStore) ScanKeys(start, end []byte) (storage.KeyReader, error) {
	return &bplusKeyReader{store: s, next: prefixed(keyPrefix, start), end: end}, nil
}

func (s *BPlusTreeStore) GetEpoch(number uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.db.Get(KVItem{prefixed(epochPrefix, util.Uint64AsBytes(number)), nil})
	if item == nil {
		return nil, storage.ErrKeyNotFound
	}
	return item.(KVItem).Value, nil
}

func (s *BPlusTreeStore) ScanEpochs(from, to uint64) ([][]byte, error) {
	if from > to {
		return nil, nil
	}
	result := make([][]byte, 0, to-from+1)
	for n := from; n <= to; n++ {
		epoch, err := s.GetEpoch(n)
		if err != nil {
			return nil, err
		}
		result = append(result, epoch)
	}
	return result, nil
}

func (s *BPlusTreeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Clear(false)
	s.head = nil
	return nil
}

func prefixed(prefix byte, key []byte) []byte {
	return append([]byte{prefix}, key...)
}

type KVItem struct {
	Key, Value []byte
}

func (p KVItem) Less(b btree.Item) bool {
	return bytes.Compare(p.Key, b.(KVItem).Key) < 0
}

type bplusKeyReader struct {
	store *BPlusTreeStore
	next  []byte
	end   []byte
	done  bool
}

func (r *bplusKeyReader) Read(buffer [][]byte) (n int, err error) {
	if r.done {
		return 0, nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.db.AscendGreaterOrEqual(KVItem{r.next, nil}, func(i btree.Item) bool {
		key := i.(KVItem).Key
		if key[0] != keyPrefix {
			r.done = true
			return false
		}
		if r.end != nil && bytes.Compare(key[1:], r.end) >= 0 {
			r.done = true
			return false
		}
		if n >= len(buffer) {
			return false
		}
		buffer[n] = key[1:]
		n++
		r.next = append(append([]byte{}, key...), 0x0) // resume strictly after this key
		return true
	})
	return n, nil
}

func (r *bplusKeyReader) Close() {
	r.store = nil
	r.done = true
}
