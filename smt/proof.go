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
	"bytes"

	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/storage"
)

// Proof is an inclusion or non-inclusion proof for a key against a root.
//
// Siblings holds the sibling digest of every internal node on the key's
// path, ordered root to leaf; direction bits are implicit in the key digest.
// The terminal of the path is either a leaf (LeafKey/LeafValue set) or an
// empty subtree (both nil). For inclusion, LeafKey equals the queried key's
// digest; for non-inclusion it is either absent or diverges from it past the
// proven path.
type Proof struct {
	Siblings  []hashing.Digest
	LeafKey   hashing.Digest
	LeafValue hashing.Digest

	hasher hashing.Hasher
}

func NewProof(siblings []hashing.Digest, leafKey, leafValue hashing.Digest, hasher hashing.Hasher) *Proof {
	return &Proof{
		Siblings:  siblings,
		LeafKey:   leafKey,
		LeafValue: leafValue,
		hasher:    hasher,
	}
}

// Prove walks the key's path collecting sibling digests. The proof length is
// bounded by the digest bit width, not by the number of stored keys.
func (t *Tree) Prove(root hashing.Digest, key []byte) (*Proof, error) {
	op := t.newOp(false)
	kd := op.hasher.Do(key)
	siblings := make([]hashing.Digest, 0, 64)
	cur := root
	for depth := 0; ; depth++ {
		if t.isEmpty(cur) {
			return NewProof(siblings, nil, nil, op.hasher), nil
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
			return NewProof(siblings, n.keyDigest, n.valueDigest, op.hasher), nil
		}
		if Bit(kd, depth) == 0 {
			siblings = append(siblings, n.right)
			cur = n.left
		} else {
			siblings = append(siblings, n.left)
			cur = n.right
		}
	}
}

// Verify checks the proof against a root without consulting any backend:
// it recomputes the path digest bottom-up from the proof's contents alone.
// A nil valueDigest claims absence; a non-nil one claims inclusion with that
// exact value digest. Any mismatch, including a proof generated for a
// different epoch's root, makes the recomputation diverge.
func (p *Proof) Verify(key []byte, valueDigest hashing.Digest, root hashing.Digest) bool {
	kd := p.hasher.Do(key)
	if !p.wellFormed(len(kd)) {
		return false
	}
	depth := len(p.Siblings)

	var current hashing.Digest
	switch {
	case valueDigest != nil:
		// inclusion: the terminal leaf must be the queried key's; the
		// claimed value digest feeds the recomputation, so a mismatched
		// value diverges even when the path is genuine
		if !bytes.Equal(p.LeafKey, kd) {
			return false
		}
		current = hashing.LeafHasherF(p.hasher)(kd, valueDigest)

	case p.LeafKey == nil:
		// absence, path ends in an empty subtree
		current = hashing.EmptyDigest(p.hasher)

	default:
		// absence, path ends in another key's leaf: it must live on the
		// queried key's path and diverge from it past the proven depth
		if bytes.Equal(p.LeafKey, kd) {
			return false
		}
		if CommonPrefixLen(kd, p.LeafKey) < depth {
			return false
		}
		current = hashing.LeafHasherF(p.hasher)(p.LeafKey, p.LeafValue)
	}

	interior := hashing.InteriorHasherF(p.hasher)
	for i := depth - 1; i >= 0; i-- {
		if Bit(kd, i) == 0 {
			current = interior(current, p.Siblings[i])
		} else {
			current = interior(p.Siblings[i], current)
		}
	}
	return bytes.Equal(current, root)
}

// wellFormed rejects shapes the tree can never emit: a path deeper than the
// key digest's bit width, or digests of the wrong length. Proofs arrive over
// the wire from untrusted peers, so a hostile shape must fail verification
// rather than index out of bounds.
func (p *Proof) wellFormed(digestLen int) bool {
	if len(p.Siblings) > digestLen*8 {
		return false
	}
	for _, s := range p.Siblings {
		if len(s) != digestLen {
			return false
		}
	}
	if p.LeafKey == nil {
		return p.LeafValue == nil
	}
	return len(p.LeafKey) == digestLen && len(p.LeafValue) == digestLen
}

// VerifiedGet resolves a key and returns a proof along with the value
// digest, checking the proof before returning it. It exists so callers can
// never observe a value the tree cannot prove.
func (t *Tree) VerifiedGet(root hashing.Digest, key []byte) (hashing.Digest, *Proof, error) {
	proof, err := t.Prove(root, key)
	if err != nil {
		return nil, nil, err
	}
	kd := proof.hasher.Do(key)
	if proof.LeafKey == nil || !bytes.Equal(proof.LeafKey, kd) {
		if !proof.Verify(key, nil, root) {
			return nil, nil, &storage.CorruptionError{Expected: root}
		}
		return nil, proof, storage.ErrKeyNotFound
	}
	if !proof.Verify(key, proof.LeafValue, root) {
		return nil, nil, &storage.CorruptionError{Expected: root}
	}
	return proof.LeafValue, proof, nil
}
