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
	"fmt"

	"github.com/bbva/verikv/crypto/hashing"
)

// Node layout. A node's bytes are exactly the preimage of its digest, so a
// fetched node can always be validated by rehashing:
//
//	leaf:     0x00 || keyDigest || valueDigest
//	internal: 0x01 || leftDigest || rightDigest
//
// Both payloads are two digests wide; the tag byte is the domain separator.

func leafBytes(keyDigest, valueDigest []byte) []byte {
	b := make([]byte, 0, 1+len(keyDigest)+len(valueDigest))
	b = append(b, hashing.LeafPrefix)
	b = append(b, keyDigest...)
	return append(b, valueDigest...)
}

func internalBytes(left, right []byte) []byte {
	b := make([]byte, 0, 1+len(left)+len(right))
	b = append(b, hashing.InteriorPrefix)
	b = append(b, left...)
	return append(b, right...)
}

type node struct {
	isLeaf bool

	// leaf payload
	keyDigest   hashing.Digest
	valueDigest hashing.Digest

	// internal payload
	left  hashing.Digest
	right hashing.Digest
}

func parseNode(raw []byte, digestLen int) (*node, error) {
	if len(raw) != 1+2*digestLen {
		return nil, fmt.Errorf("smt: malformed node of length %d", len(raw))
	}
	a, b := raw[1:1+digestLen], raw[1+digestLen:]
	switch raw[0] {
	case hashing.LeafPrefix:
		return &node{isLeaf: true, keyDigest: a, valueDigest: b}, nil
	case hashing.InteriorPrefix:
		return &node{left: a, right: b}, nil
	default:
		return nil, fmt.Errorf("smt: unknown node tag %#x", raw[0])
	}
}
