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

package hashing

// Domain separation tags. A leaf digest can never collide with an interior
// digest because their preimages start with distinct bytes.
const (
	LeafPrefix     = byte(0x00)
	InteriorPrefix = byte(0x01)
)

type LeafHasher func(key, value []byte) Digest
type InteriorHasher func(left, right []byte) Digest

// LeafHasherF returns the domain-separated hash function for leaves:
// H(0x00 || key || value).
func LeafHasherF(hasher Hasher) LeafHasher {
	return func(key, value []byte) Digest {
		return hasher.Do([]byte{LeafPrefix}, key, value)
	}
}

// InteriorHasherF returns the domain-separated hash function for interior
// nodes: H(0x01 || left || right).
func InteriorHasherF(hasher Hasher) InteriorHasher {
	return func(left, right []byte) Digest {
		return hasher.Do([]byte{InteriorPrefix}, left, right)
	}
}

// EmptyDigest returns the well-known digest of an empty subtree: the hash
// of zero bytes of input. Sparse trees use it to address and prove absent
// paths without persisting them.
func EmptyDigest(hasher Hasher) Digest {
	return hasher.Do()
}
