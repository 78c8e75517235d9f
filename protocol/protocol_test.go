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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/smt"
	"github.com/bbva/verikv/storage/bplus"
)

func TestProofRoundtripStaysVerifiable(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	tree := smt.NewTree(hashing.NewSha256Hasher, store)
	hasher := hashing.NewSha256Hasher()

	root, mutations, err := tree.Apply(tree.EmptyRoot(),
		smt.NewBatch().Put([]byte("alice"), []byte("apple")).Put([]byte("bob"), []byte("banana")))
	require.NoError(t, err)
	require.NoError(t, store.PutNodes(mutations))

	proof, err := tree.Prove(root, []byte("alice"))
	require.NoError(t, err)

	encoded, err := EncodeProof(proof)
	require.NoError(t, err)
	assert.Equal(t, Version, encoded[0])

	decoded, err := DecodeProof(encoded, hashing.NewSha256Hasher)
	require.NoError(t, err)
	assert.Equal(t, proof.Siblings, decoded.Siblings)
	assert.True(t, decoded.Verify([]byte("alice"), hasher.Do([]byte("apple")), root),
		"A decoded proof must verify exactly as the original")
}

func TestNonInclusionProofRoundtrip(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	tree := smt.NewTree(hashing.NewSha256Hasher, store)

	root, mutations, err := tree.Apply(tree.EmptyRoot(), smt.NewBatch().Put([]byte("alice"), []byte("apple")))
	require.NoError(t, err)
	require.NoError(t, store.PutNodes(mutations))

	proof, err := tree.Prove(root, []byte("ghost"))
	require.NoError(t, err)

	encoded, err := EncodeProof(proof)
	require.NoError(t, err)
	decoded, err := DecodeProof(encoded, hashing.NewSha256Hasher)
	require.NoError(t, err)

	assert.True(t, decoded.Verify([]byte("ghost"), nil, root))
}

func TestDecodedHostileProofFailsVerification(t *testing.T) {
	// the offline verifier feeds attacker-controlled envelopes straight into
	// Verify, so decoded hostile shapes must fail instead of panicking
	hasher := hashing.NewSha256Hasher()
	kd := hasher.Do([]byte("alice"))
	root := hasher.Do([]byte("some root"))

	overlong := make([]hashing.Digest, 300)
	for i := range overlong {
		overlong[i] = hasher.Do([]byte("sibling"))
	}

	hostiles := []*smt.Proof{
		smt.NewProof(overlong, kd, hasher.Do([]byte("apple")), hashing.NewSha256Hasher()),
		smt.NewProof([]hashing.Digest{hasher.Do([]byte("sibling"))}, kd[:4], kd, hashing.NewSha256Hasher()),
	}
	for _, hostile := range hostiles {
		encoded, err := EncodeProof(hostile)
		require.NoError(t, err)
		decoded, err := DecodeProof(encoded, hashing.NewSha256Hasher)
		require.NoError(t, err)

		assert.False(t, decoded.Verify([]byte("alice"), kd, root))
		assert.False(t, decoded.Verify([]byte("alice"), nil, root))
	}
}

func TestEpochRoundtrip(t *testing.T) {
	hasher := hashing.NewSha256Hasher()
	genesis := chain.NewGenesis(hashing.EmptyDigest(hasher), 1000)
	epoch := genesis.Next(hasher.Do([]byte("root")), []byte("meta"), 2000)

	encoded, err := EncodeEpoch(epoch)
	require.NoError(t, err)
	assert.Equal(t, Version, encoded[0])

	decoded, err := DecodeEpoch(encoded)
	require.NoError(t, err)
	assert.Equal(t, epoch, decoded)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	hasher := hashing.NewSha256Hasher()
	epoch := chain.NewGenesis(hashing.EmptyDigest(hasher), 1000)

	encoded, err := EncodeEpoch(epoch)
	require.NoError(t, err)
	encoded[0] = 0x7f

	_, err = DecodeEpoch(encoded)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	_, err = DecodeProof(encoded, hashing.NewSha256Hasher)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestDecodeRejectsEmptyEnvelope(t *testing.T) {
	_, err := DecodeEpoch(nil)
	assert.Error(t, err)
}

func TestEncodingIsDeterministic(t *testing.T) {
	hasher := hashing.NewSha256Hasher()
	epoch := chain.NewGenesis(hashing.EmptyDigest(hasher), 1000)

	e1, err := EncodeEpoch(epoch)
	require.NoError(t, err)
	e2, err := EncodeEpoch(epoch)
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
}
