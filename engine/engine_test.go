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

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbva/verikv/cache"
	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/smt"
	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/storage/bplus"
	"github.com/bbva/verikv/testutils/rand"
	storage_utils "github.com/bbva/verikv/testutils/storage"
)

func TestOpenCommitsGenesis(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	eng, err := Open(store)
	require.NoError(t, err)
	defer eng.Close()

	head, err := eng.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head.Number)
	assert.Equal(t, hashing.EmptyDigest(hashing.NewSha256Hasher()), head.Root)
	assert.Equal(t, chain.GenesisSentinel(32), head.PrevRoot)
}

func TestReopenKeepsHead(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	eng, err := Open(store)
	require.NoError(t, err)

	epoch, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)

	// a second engine over the same store must not re-commit genesis
	eng2, err := Open(store)
	require.NoError(t, err)
	head, err := eng2.Head()
	require.NoError(t, err)
	assert.Equal(t, epoch.Number, head.Number)
	assert.Equal(t, epoch.Root, head.Root)
}

func TestCommitAdvancesChain(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore())
	require.NoError(t, err)
	defer eng.Close()
	hasher := hashing.NewSha256Hasher()

	epoch1, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch1.Number, "The first commit after genesis is epoch 1")

	epoch2, err := eng.Commit(smt.NewBatch().Put([]byte("bob"), []byte("banana")), []byte("meta"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epoch2.Number)
	assert.Equal(t, epoch1.Root, epoch2.PrevRoot)
	assert.Equal(t, []byte("meta"), epoch2.Metadata)

	value, err := eng.Get([]byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, hasher.Do([]byte("apple")), value)

	raw, err := eng.GetValue([]byte("bob"))
	require.NoError(t, err)
	assert.Equal(t, []byte("banana"), raw)

	_, err = eng.Get([]byte("carol"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestProveAtHeadAndAtHistoricalRoot(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore())
	require.NoError(t, err)
	defer eng.Close()
	hasher := hashing.NewSha256Hasher()

	epoch1, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	_, err = eng.Commit(smt.NewBatch().Put([]byte("bob"), []byte("banana")), nil)
	require.NoError(t, err)

	proof, head, err := eng.Prove([]byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), head.Number)
	assert.True(t, proof.Verify([]byte("alice"), hasher.Do([]byte("apple")), head.Root))

	// non-inclusion at the head
	proof, head, err = eng.Prove([]byte("carol"))
	require.NoError(t, err)
	assert.True(t, proof.Verify([]byte("carol"), nil, head.Root))

	// bob was absent at epoch 1 and the old root still proves it
	old, err := eng.ProveAt(epoch1.Root, []byte("bob"))
	require.NoError(t, err)
	assert.True(t, old.Verify([]byte("bob"), nil, epoch1.Root))

	digest, err := eng.GetAt(epoch1.Root, []byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, hasher.Do([]byte("apple")), digest)
}

func TestHistoryAndAudit(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore())
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	_, err = eng.Commit(smt.NewBatch().Put([]byte("bob"), []byte("banana")), nil)
	require.NoError(t, err)

	epochs, err := eng.History(0, 2)
	require.NoError(t, err)
	require.Len(t, epochs, 3)
	assert.Equal(t, uint64(0), epochs[0].Number)
	assert.Equal(t, epochs[1].Root, epochs[2].PrevRoot)

	_, ok, err := eng.Audit(0, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

// hookedStore intercepts CASHead to inject a concurrent commit between a
// committer's read of the head and its CAS attempt.
type hookedStore struct {
	storage.Store
	beforeCAS func()
}

func (s *hookedStore) CASHead(expectedRoot []byte, head *storage.Head) error {
	if s.beforeCAS != nil {
		s.beforeCAS()
	}
	return s.Store.CASHead(expectedRoot, head)
}

func TestCommitRetriesOnConflict(t *testing.T) {
	inner := bplus.NewBPlusTreeStore()
	hooked := &hookedStore{Store: inner}

	eng, err := Open(hooked)
	require.NoError(t, err)
	rival, err := Open(inner)
	require.NoError(t, err)

	// the rival advances the head exactly once, right before our CAS
	fired := false
	hooked.beforeCAS = func() {
		if fired {
			return
		}
		fired = true
		_, err := rival.Commit(smt.NewBatch().Put([]byte("bob"), []byte("banana")), nil)
		require.NoError(t, err)
	}

	epoch, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epoch.Number, "The conflicted commit must land on top of the rival's epoch")

	// both writes survived
	_, err = eng.Get([]byte("alice"))
	assert.NoError(t, err)
	_, err = eng.Get([]byte("bob"))
	assert.NoError(t, err)

	// the hooked wrapper hides the inner store's capabilities, so the
	// history is read through the rival
	epochs, err := rival.History(0, 2)
	require.NoError(t, err)
	assert.True(t, chain.VerifyChain(epochs))
}

// conflictingStore lets genesis through, then conflicts on every CAS.
type conflictingStore struct {
	storage.Store
}

func (s *conflictingStore) CASHead(expectedRoot []byte, head *storage.Head) error {
	if expectedRoot == nil {
		return s.Store.CASHead(expectedRoot, head)
	}
	return storage.ErrConflict
}

func TestCommitAbortsAfterRetryBudget(t *testing.T) {
	eng, err := Open(&conflictingStore{Store: bplus.NewBPlusTreeStore()}, WithRetries(2))
	require.NoError(t, err)

	_, err = eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	assert.ErrorIs(t, err, ErrCommitAborted)
}

// flakyStore fails PutNodes a fixed number of times with a transient error.
type flakyStore struct {
	storage.Store
	failures int
}

func (s *flakyStore) PutNodes(nodes []storage.Node) error {
	if s.failures > 0 {
		s.failures--
		return &storage.IOError{Op: "put nodes", Err: errors.New("disk hiccup")}
	}
	return s.Store.PutNodes(nodes)
}

func TestCommitRetriesTransientIOFailure(t *testing.T) {
	inner := bplus.NewBPlusTreeStore()
	eng, err := Open(inner,
		WithNodeStore(&flakyStore{Store: inner, failures: 2}),
		WithBackoff(time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	epoch, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch.Number)
	// two transient failures back off 1ms then 2ms before succeeding
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestGetValueDetectsTamperedBlob(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	eng, err := Open(store)
	require.NoError(t, err)

	_, err = eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)

	// overwrite the value blob under its content address
	digest, err := eng.Get([]byte("alice"))
	require.NoError(t, err)
	require.NoError(t, store.PutNodes([]storage.Node{storage.NewNode(digest, []byte("poisoned"))}))

	_, err = eng.GetValue([]byte("alice"))
	var corruption *storage.CorruptionError
	assert.ErrorAs(t, err, &corruption)
}

func TestCommitWithCache(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore(), WithCache(cache.NewSimpleCache(1024)))
	require.NoError(t, err)

	_, err = eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)

	value, err := eng.GetValue([]byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, []byte("apple"), value)
}

func TestDeleteCommit(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore())
	require.NoError(t, err)

	epoch1, err := eng.Commit(smt.NewBatch().Put([]byte("alice"), []byte("apple")), nil)
	require.NoError(t, err)
	_, err = eng.Commit(smt.NewBatch().Put([]byte("bob"), []byte("banana")), nil)
	require.NoError(t, err)

	epoch3, err := eng.Commit(smt.NewBatch().Delete([]byte("bob")), nil)
	require.NoError(t, err)
	assert.Equal(t, epoch1.Root, epoch3.Root, "Deleting the only change must restore the old root")

	_, err = eng.Get([]byte("bob"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestCommitAcrossBackends(t *testing.T) {
	bplusStore, closeBPlus := storage_utils.NewBPlusTreeStore()
	defer closeBPlus()
	badgerStore, closeBadger := storage_utils.NewBadgerStore(t, t.TempDir()+"/badger")
	defer closeBadger()
	sqliteStore, closeSQLite := storage_utils.NewSQLiteStore(t, t.TempDir()+"/test.db")
	defer closeSQLite()

	keys := rand.Keys(20)
	values := make([][]byte, len(keys))
	for i := range values {
		values[i] = rand.Bytes(128)
	}

	roots := make([]hashing.Digest, 0, 3)
	for _, store := range []storage.Store{bplusStore, badgerStore, sqliteStore} {
		eng, err := Open(store)
		require.NoError(t, err)

		batch := smt.NewBatch()
		for i, key := range keys {
			batch.Put(key, values[i])
		}
		epoch, err := eng.Commit(batch, nil)
		require.NoError(t, err)
		roots = append(roots, epoch.Root)

		value, err := eng.GetValue(keys[7])
		require.NoError(t, err)
		assert.Equal(t, values[7], value)

		proof, head, err := eng.Prove(keys[0])
		require.NoError(t, err)
		assert.True(t, proof.Verify(keys[0], hashing.NewSha256Hasher().Do(values[0]), head.Root))
	}

	// the root commitment depends on the contents alone, never on the backend
	assert.Equal(t, roots[0], roots[1])
	assert.Equal(t, roots[0], roots[2])
}

func TestScanKeysThroughEngine(t *testing.T) {
	eng, err := Open(bplus.NewBPlusTreeStore())
	require.NoError(t, err)

	_, err = eng.Commit(smt.NewBatch().
		Put([]byte("alice"), []byte("a")).
		Put([]byte("bob"), []byte("b")), nil)
	require.NoError(t, err)

	reader, err := eng.ScanKeys(nil, nil)
	require.NoError(t, err)
	defer reader.Close()

	buffer := make([][]byte, 10)
	n, err := reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("alice"), []byte("bob")}, buffer[:n])
}
