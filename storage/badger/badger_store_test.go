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

package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbva/verikv/storage"
)

func openStore(t *testing.T) *BadgerStore {
	store, err := NewBadgerStoreOpts(&Options{Path: t.TempDir(), NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestNodeRoundtrip(t *testing.T) {
	store := openStore(t)

	_, err := store.GetNode([]byte("missing"))
	assert.Equal(t, storage.ErrKeyNotFound, err)

	require.NoError(t, store.PutNodes([]storage.Node{
		storage.NewNode([]byte("d1"), []byte("bytes one")),
		storage.NewNode([]byte("d2"), []byte("bytes two")),
	}))

	value, err := store.GetNode([]byte("d2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes two"), value)
}

func TestHeadCAS(t *testing.T) {
	store := openStore(t)

	_, err := store.GetHead()
	assert.Equal(t, storage.ErrKeyNotFound, err)

	head1 := &storage.Head{Number: 0, Root: []byte("root-0"), Epoch: []byte("epoch-0")}
	assert.Equal(t, storage.ErrConflict, store.CASHead([]byte("anything"), head1))
	require.NoError(t, store.CASHead(nil, head1))

	head2 := &storage.Head{Number: 1, Root: []byte("root-1"), Epoch: []byte("epoch-1")}
	assert.Equal(t, storage.ErrConflict, store.CASHead(nil, head2))
	assert.Equal(t, storage.ErrConflict, store.CASHead([]byte("stale"), head2))
	require.NoError(t, store.CASHead([]byte("root-0"), head2))

	current, err := store.GetHead()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Number)
	assert.Equal(t, []byte("root-1"), current.Root)
	assert.Equal(t, []byte("epoch-1"), current.Epoch)
}

func TestEpochHistory(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.CASHead(nil, &storage.Head{Number: 0, Root: []byte("r0"), Epoch: []byte("e0")}))
	require.NoError(t, store.CASHead([]byte("r0"), &storage.Head{Number: 1, Root: []byte("r1"), Epoch: []byte("e1")}))

	epoch, err := store.GetEpoch(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("e0"), epoch)

	epochs, err := store.ScanEpochs(0, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("e0"), []byte("e1")}, epochs)

	_, err = store.GetEpoch(7)
	assert.Equal(t, storage.ErrKeyNotFound, err)

	// an inverted range is empty, not a panic
	epochs, err = store.ScanEpochs(1, 0)
	require.NoError(t, err)
	assert.Empty(t, epochs)
}

func TestKeyScan(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.PutKeys([][]byte{
		[]byte("alice"), []byte("bob"), []byte("carol"), []byte("dan"),
	}))

	reader, err := store.ScanKeys([]byte("bob"), []byte("dan"))
	require.NoError(t, err)
	defer reader.Close()

	buffer := make([][]byte, 1)
	collected := make([][]byte, 0)
	for {
		n, err := reader.Read(buffer)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		collected = append(collected, buffer[:n]...)
	}
	assert.Equal(t, [][]byte{[]byte("bob"), []byte("carol")}, collected)
}
