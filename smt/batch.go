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

package smt

import (
	"sort"

	"github.com/bbva/verikv/crypto/hashing"
)

// Batch is an ordered set of mutations applied together to produce exactly
// one new root. Mutations to the same key resolve last-write-wins by batch
// order.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key       []byte
	value     []byte
	tombstone bool
}

func NewBatch() *Batch {
	return &Batch{}
}

// Put records a key/value mutation. The value is the record's canonical
// encoding, opaque to the tree.
func (b *Batch) Put(key, value []byte) *Batch {
	b.ops = append(b.ops, batchOp{key: key, value: value})
	return b
}

// Delete records a tombstone for a key. Deleting an absent key is a no-op.
func (b *Batch) Delete(key []byte) *Batch {
	b.ops = append(b.ops, batchOp{key: key, tombstone: true})
	return b
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Keys returns the logical keys touched by the batch, for key indexing.
func (b *Batch) Keys() [][]byte {
	keys := make([][]byte, 0, len(b.ops))
	for _, op := range b.ops {
		keys = append(keys, op.key)
	}
	return keys
}

type resolvedOp struct {
	keyDigest hashing.Digest
	key       []byte
	value     []byte
	tombstone bool
}

// resolve collapses duplicate keys last-write-wins and returns the surviving
// mutations sorted by key digest. The root is insertion-order independent
// anyway; sorting just makes the emitted mutation list reproducible.
func (b *Batch) resolve(hasher hashing.Hasher) []resolvedOp {
	byKey := make(map[string]int, len(b.ops))
	resolved := make([]resolvedOp, 0, len(b.ops))
	for _, op := range b.ops {
		kd := hasher.Do(op.key)
		if i, ok := byKey[string(kd)]; ok {
			resolved[i] = resolvedOp{keyDigest: kd, key: op.key, value: op.value, tombstone: op.tombstone}
			continue
		}
		byKey[string(kd)] = len(resolved)
		resolved = append(resolved, resolvedOp{keyDigest: kd, key: op.key, value: op.value, tombstone: op.tombstone})
	}
	sort.Slice(resolved, func(i, j int) bool {
		return string(resolved[i].keyDigest) < string(resolved[j].keyDigest)
	})
	return resolved
}
