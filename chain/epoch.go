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

// Package chain implements the commit log: a hash-linked sequence of epochs,
// each committing one root and referencing its predecessor's. The chain is
// append-only; a single altered link invalidates every verification from
// that point on.
package chain

import (
	"bytes"

	"github.com/bbva/verikv/crypto/hashing"
)

// Epoch is one committed version of the map. PrevRoot equals the immediately
// preceding epoch's Root; epoch 0 references the genesis sentinel. Metadata
// is opaque to the core: callers may carry external signatures, batch
// provenance or anything else in it.
type Epoch struct {
	Number    uint64
	Root      hashing.Digest
	PrevRoot  hashing.Digest
	Metadata  []byte
	Timestamp int64
}

// GenesisSentinel is the PrevRoot of epoch 0: a zero digest of the given
// width, distinguishable from any real root.
func GenesisSentinel(digestLen int) hashing.Digest {
	return make(hashing.Digest, digestLen)
}

// NewGenesis builds epoch 0, committing the empty root.
func NewGenesis(emptyRoot hashing.Digest, timestamp int64) *Epoch {
	return &Epoch{
		Number:    0,
		Root:      emptyRoot,
		PrevRoot:  GenesisSentinel(len(emptyRoot)),
		Timestamp: timestamp,
	}
}

// Next builds the epoch that follows e with the given new root.
func (e *Epoch) Next(root hashing.Digest, metadata []byte, timestamp int64) *Epoch {
	return &Epoch{
		Number:    e.Number + 1,
		Root:      root,
		PrevRoot:  e.Root,
		Metadata:  metadata,
		Timestamp: timestamp,
	}
}

// VerifyChain checks that an ordered sequence of epochs is an unbroken
// hash-linked history: contiguous numbering and every PrevRoot matching the
// predecessor's Root. A sequence starting at epoch 0 must reference the
// genesis sentinel. Used when auditing exported history; an empty sequence
// is trivially valid.
func VerifyChain(epochs []*Epoch) bool {
	for i, e := range epochs {
		if i == 0 {
			if e.Number == 0 && !bytes.Equal(e.PrevRoot, GenesisSentinel(len(e.Root))) {
				return false
			}
			continue
		}
		prev := epochs[i-1]
		if e.Number != prev.Number+1 {
			return false
		}
		if !bytes.Equal(e.PrevRoot, prev.Root) {
			return false
		}
	}
	return true
}
