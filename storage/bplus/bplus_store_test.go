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

package bplus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbva/verikv/storage"
)

func TestNodeRoundtrip(t *testing.T) {
	store := NewBPlusTreeStore()
	defer store.Close()

	_, err := store.GetNode([]byte("missing"))
	assert.Equal(t, storage.ErrKeyNotFound, err)

	nodes := []storage.Node{
		storage.NewNode([]byte("d1"), []byte("bytes one")),
		storage.NewNode([]byte("d2"), []byte("bytes two")),
	}
	require.NoError(t, store.PutNodes(nodes))

	value, err := store.GetNode([]byte("d1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes one"), value)

	// re-putting an existing digest is a no-op
	require.NoError(t, store.PutNodes(nodes[:1]))
}

func TestHeadCAS(t *testing.T) {
	store := NewBPlusTreeStore()
	defer store.Close()

	_, err := store.GetHead()
	assert.Equal(t, storage.ErrKeyNotFound, err, "A fresh store has no head")

	head1 := &storage.Head{Number: 0, Root: []byte("root-0"), Epoch: []byte("epoch-0")}
	assert.Equal(t, storage.ErrConflict, store.CASHead([]byte("anything"), head1),
		"Expecting a head on a fresh store must conflict")
	require.NoError(t, store.CASHead(nil, head1))

	current, err := store.GetHead()
	require.NoError(t, err)
	assert.Equal(t, head1.Root, current.Root)

	head2 := &storage.Head{Number: 1, Root: []byte("root-1"), Epoch: []byte("epoch-1")}
	assert.Equal(t, storage.ErrConflict, store.CASHead(nil, head2),
		"Expecting no head when one exists must conflict")
	assert.Equal(t, storage.ErrConflict, store.CASHead([]byte("stale"), head2))
	require.NoError(t, store.CASHead([]byte("root-0"), head2))

	current, err = store.GetHead()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Number)
	assert.Equal(t, []byte("root-1"), current.Root)
}

func TestEpochHistory(t *testing.T) {
	store := NewBPlusTreeStore()
	defer store.Close()

	require.NoError(t, store.CASHead(nil, &storage.Head{Number: 0, Root: []byte("r0"), Epoch: []byte("e0")}))
	require.NoError(t, store.CASHead([]byte("r0"), &storage.Head{Number: 1, Root: []byte("r1"), Epoch: []byte("e1")}))
	require.NoError(t, store.CASHead([]byte("r1"), &storage.Head{Number: 2, Root: []byte("r2"), Epoch: []byte("e2")}))

	epoch, err := store.GetEpoch(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("e1"), epoch)

	epochs, err := store.ScanEpochs(0, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("e0"), []byte("e1"), []byte("e2")}, epochs)

	_, err = store.GetEpoch(7)
	assert.Equal(t, storage.ErrKeyNotFound, err)

	// an inverted range is empty, not a panic
	epochs, err = store.ScanEpochs(2, 0)
	require.NoError(t, err)
	assert.Empty(t, epochs)
}

func TestKeyScan(t *testing.T) {
	store := NewBPlusTreeStore()
	defer store.Close()

	require.NoError(t, store.PutKeys([][]byte{
		[]byte("alice"), []byte("bob"), []byte("carol"), []byte("dan"),
	}))
	// indexing a key twice keeps a single entry
	require.NoError(t, store.PutKeys([][]byte{[]byte("bob")}))

	reader, err := store.ScanKeys(nil, nil)
	require.NoError(t, err)
	defer reader.Close()

	// a buffer smaller than the result forces multiple reads
	buffer := make([][]byte, 3)
	n, err := reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][]byte{[]byte("alice"), []byte("bob"), []byte("carol")}, buffer[:n])

	n, err = reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte("dan"), buffer[0])

	n, err = reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKeyScanBounds(t *testing.T) {
	store := NewBPlusTreeStore()
	defer store.Close()

	require.NoError(t, store.PutKeys([][]byte{
		[]byte("alice"), []byte("bob"), []byte("carol"), []byte("dan"),
	}))

	reader, err := store.ScanKeys([]byte("bob"), []byte("dan"))
	require.NoError(t, err)
	defer reader.Close()

	buffer := make([][]byte, 10)
	n, err := reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("bob"), []byte("carol")}, buffer[:n])
}
