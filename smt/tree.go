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

// Package smt implements the authenticated map: a compressed sparse Merkle
// tree over hashed keys. A leaf lives at the shallowest depth at which its
// key-digest prefix is unique, so the tree shape, and therefore the root, is
// a pure function of the (key digest, value digest) contents.
//
// Nodes are immutable and content-addressed. Operations take an explicit
// root digest, so any published epoch's root can be read or proven against
// concurrently with writers computing new roots. Hashers are stateful;
// every operation instantiates its own, which is why the tree takes a
// constructor instead of an instance.
package smt

import (
	"bytes"

	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/storage"
)

type Tree struct {
	store     storage.Store
	hasherF   func() hashing.Hasher
	empty     hashing.Digest
	digestLen int
}

func NewTree(hasherF func() hashing.Hasher, store storage.Store) *Tree {
	empty := hashing.EmptyDigest(hasherF())
	return &Tree{
		store:     store,
		hasherF:   hasherF,
		empty:     empty,
		digestLen: len(empty),
	}
}

// EmptyRoot returns the root digest of the empty tree.
func (t *Tree) EmptyRoot() hashing.Digest {
	return t.empty
}

func (t *Tree) isEmpty(digest hashing.Digest) bool {
	return bytes.Equal(digest, t.empty)
}

// fetch loads a node's bytes by digest, preferring nodes staged by the
// in-flight apply, and validates them by rehashing. A digest mismatch means
// tampering or backend inconsistency and surfaces as a CorruptionError.
func (t *Tree) fetch(op *treeOp, digest hashing.Digest) ([]byte, error) {
	if op.overlay != nil {
		if raw, ok := op.overlay[string(digest)]; ok {
			return raw, nil
		}
	}
	raw, err := t.store.GetNode(digest)
	if err != nil {
		return nil, err
	}
	if actual := op.hasher.Do(raw); !bytes.Equal(actual, digest) {
		return nil, &storage.CorruptionError{Expected: digest, Actual: actual}
	}
	return raw, nil
}

// Get returns the value digest stored under key in the tree identified by
// root. A miss surfaces as storage.ErrKeyNotFound, which is a normal result.
func (t *Tree) Get(root hashing.Digest, key []byte) (hashing.Digest, error) {
	op := t.newOp(false)
	kd := op.hasher.Do(key)
	cur := root
	for depth := 0; ; depth++ {
		if t.isEmpty(cur) {
			return nil, storage.ErrKeyNotFound
		}
		raw, err := t.fetch(op, cur)
		if err != nil {
			return nil, err
		}
		n, err := parseNode(raw, t.digestLen)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			if !bytes.Equal(n.keyDigest, kd) {
				return nil, storage.ErrKeyNotFound
			}
			return n.valueDigest, nil
		}
		if Bit(kd, depth) == 0 {
			cur = n.left
		} else {
			cur = n.right
		}
	}
}

// Apply computes the root that results from applying the batch on top of the
// given root. It touches only the paths of the batch's keys; untouched
// subtrees are referenced unchanged. Apply never writes to the store: it
// returns the new root along with every new node (and content-addressed
// value blob) for the caller to persist.
func (t *Tree) Apply(root hashing.Digest, batch *Batch) (hashing.Digest, []storage.Node, error) {
	op := t.newOp(true)
	newRoot := root
	var err error
	for _, m := range batch.resolve(op.hasher) {
		if m.tombstone {
			newRoot, err = t.delete(op, newRoot, 0, m.keyDigest)
		} else {
			vd := op.hasher.Do(m.value)
			op.add(vd, m.value)
			newRoot, err = t.insert(op, newRoot, 0, m.keyDigest, vd)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return newRoot, op.mutations, nil
}

func (t *Tree) insert(op *treeOp, nodeDigest hashing.Digest, depth int, kd, vd hashing.Digest) (hashing.Digest, error) {
	if t.isEmpty(nodeDigest) {
		return op.addLeaf(kd, vd), nil
	}
	raw, err := t.fetch(op, nodeDigest)
	if err != nil {
		return nil, err
	}
	n, err := parseNode(raw, t.digestLen)
	if err != nil {
		return nil, err
	}

	if n.isLeaf {
		if bytes.Equal(n.keyDigest, kd) {
			if bytes.Equal(n.valueDigest, vd) {
				return nodeDigest, nil
			}
			return op.addLeaf(kd, vd), nil
		}
		// the occupied slot splits: both leaves move down to the first
		// divergent bit, linked by a chain of one-sided internal nodes
		div := CommonPrefixLen(kd, n.keyDigest)
		newLeaf := op.addLeaf(kd, vd)
		var h hashing.Digest
		if Bit(kd, div) == 0 {
			h = op.addInternal(newLeaf, nodeDigest)
		} else {
			h = op.addInternal(nodeDigest, newLeaf)
		}
		for d := div - 1; d >= depth; d-- {
			if Bit(kd, d) == 0 {
				h = op.addInternal(h, t.empty)
			} else {
				h = op.addInternal(t.empty, h)
			}
		}
		return h, nil
	}

	if Bit(kd, depth) == 0 {
		left, err := t.insert(op, n.left, depth+1, kd, vd)
		if err != nil {
			return nil, err
		}
		return op.addInternal(left, n.right), nil
	}
	right, err := t.insert(op, n.right, depth+1, kd, vd)
	if err != nil {
		return nil, err
	}
	return op.addInternal(n.left, right), nil
}

func (t *Tree) delete(op *treeOp, nodeDigest hashing.Digest, depth int, kd hashing.Digest) (hashing.Digest, error) {
	if t.isEmpty(nodeDigest) {
		return nodeDigest, nil
	}
	raw, err := t.fetch(op, nodeDigest)
	if err != nil {
		return nil, err
	}
	n, err := parseNode(raw, t.digestLen)
	if err != nil {
		return nil, err
	}

	if n.isLeaf {
		if bytes.Equal(n.keyDigest, kd) {
			return t.empty, nil
		}
		return nodeDigest, nil
	}

	var child, sibling hashing.Digest
	if Bit(kd, depth) == 0 {
		child, sibling = n.left, n.right
	} else {
		child, sibling = n.right, n.left
	}
	newChild, err := t.delete(op, child, depth+1, kd)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(newChild, child) {
		return nodeDigest, nil
	}

	// collapse single-leaf subtrees upward so the shape stays canonical
	if t.isEmpty(newChild) {
		if t.isEmpty(sibling) {
			return t.empty, nil
		}
		leaf, err := t.isLeafDigest(op, sibling)
		if err != nil {
			return nil, err
		}
		if leaf {
			return sibling, nil
		}
	} else {
		leaf, err := t.isLeafDigest(op, newChild)
		if err != nil {
			return nil, err
		}
		if leaf && t.isEmpty(sibling) {
			return newChild, nil
		}
	}

	if Bit(kd, depth) == 0 {
		return op.addInternal(newChild, sibling), nil
	}
	return op.addInternal(sibling, newChild), nil
}

func (t *Tree) isLeafDigest(op *treeOp, digest hashing.Digest) (bool, error) {
	raw, err := t.fetch(op, digest)
	if err != nil {
		return false, err
	}
	return raw[0] == hashing.LeafPrefix, nil
}

// treeOp carries the per-operation hasher and, for applies, the staged
// nodes. Staged nodes are visible to subsequent mutations of the same batch
// through the overlay.
type treeOp struct {
	hasher    hashing.Hasher
	overlay   map[string][]byte
	mutations []storage.Node
}

func (t *Tree) newOp(staging bool) *treeOp {
	op := &treeOp{hasher: t.hasherF()}
	if staging {
		op.overlay = make(map[string][]byte)
	}
	return op
}

func (op *treeOp) add(digest hashing.Digest, raw []byte) {
	if _, ok := op.overlay[string(digest)]; ok {
		return
	}
	op.overlay[string(digest)] = raw
	op.mutations = append(op.mutations, storage.NewNode(digest, raw))
}

func (op *treeOp) addLeaf(kd, vd hashing.Digest) hashing.Digest {
	raw := leafBytes(kd, vd)
	digest := op.hasher.Do(raw)
	op.add(digest, raw)
	return digest
}

func (op *treeOp) addInternal(left, right hashing.Digest) hashing.Digest {
	raw := internalBytes(left, right)
	digest := op.hasher.Do(raw)
	op.add(digest, raw)
	return digest
}
