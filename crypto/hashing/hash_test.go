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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashers(t *testing.T) {

	testCases := []struct {
		name    string
		hasherF func() Hasher
	}{
		{"sha256", NewSha256Hasher},
		{"blake2b", NewBlake2bHasher},
		{"blake3", NewBlake3Hasher},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			hasher := c.hasherF()

			assert.Equal(t, uint16(256), hasher.Len(), "Digest must be 256 bits wide")

			d1 := hasher.Do([]byte("a test event"))
			d2 := hasher.Do([]byte("a test event"))
			require.Equal(t, d1, d2, "Hashing the same input twice must be deterministic")
			assert.Len(t, d1, 32)

			d3 := hasher.Do([]byte("another test event"))
			assert.NotEqual(t, d1, d3, "Different inputs must produce different digests")

			// the hasher is stateful but resets per call
			fresh := c.hasherF().Do([]byte("a test event"))
			assert.Equal(t, d1, fresh, "A reused hasher must match a fresh one")
		})
	}
}

func TestHashersDisagree(t *testing.T) {
	input := []byte("a test event")
	sha := NewSha256Hasher().Do(input)
	b2 := NewBlake2bHasher().Do(input)
	b3 := NewBlake3Hasher().Do(input)
	assert.NotEqual(t, sha, b2)
	assert.NotEqual(t, sha, b3)
	assert.NotEqual(t, b2, b3)
}

func TestXorHasher(t *testing.T) {
	hasher := NewXorHasher()
	assert.Equal(t, Digest{0x0}, hasher.Do([]byte{0x1}, []byte{0x1}))
	assert.Equal(t, Digest{0x3}, hasher.Do([]byte{0x1}, []byte{0x2}))
	assert.Equal(t, Digest{0x0}, hasher.Do())
}

func TestDomainSeparation(t *testing.T) {
	hasher := NewSha256Hasher()
	kd := hasher.Do([]byte("key"))
	vd := hasher.Do([]byte("value"))

	leaf := LeafHasherF(hasher)(kd, vd)
	interior := InteriorHasherF(hasher)(kd, vd)
	assert.NotEqual(t, leaf, interior, "Leaf and interior hashes over the same children must differ")

	plain := hasher.Do(kd, vd)
	assert.NotEqual(t, leaf, plain)
	assert.NotEqual(t, interior, plain)
}

func TestEmptyDigest(t *testing.T) {
	hasher := NewSha256Hasher()
	assert.Equal(t, hasher.Do(), EmptyDigest(hasher))
	assert.Len(t, EmptyDigest(hasher), 32)
}
