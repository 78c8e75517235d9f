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

// Package engine orchestrates write batches into epochs: it loads the head,
// applies the batch to the authenticated map, persists the new nodes and
// advances the head with a compare-and-swap. The engine is the only layer
// that retries; everything below surfaces conflicts so the retry policy
// stays centralized and auditable.
package engine

import (
	"bytes"
	"errors"
	"time"

	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/log"
	"github.com/bbva/verikv/metrics"
	"github.com/bbva/verikv/protocol"
	"github.com/bbva/verikv/smt"
	"github.com/bbva/verikv/storage"
)

// ErrCommitAborted is returned once the retry budget is exhausted on
// persistent conflict or transient I/O failure.
var ErrCommitAborted = errors.New("engine: commit aborted after retry budget exhausted")

type Engine struct {
	store storage.Store // raw adapter: head ops and optional capabilities
	nodes storage.Store // possibly cache-wrapped: node traffic
	tree  *smt.Tree

	hasherF func() hashing.Hasher
	retries int
	backoff time.Duration
	now     func() time.Time
}

// Open builds an engine over a backend adapter and commits the genesis
// epoch if the store has never been written to.
func Open(store storage.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   store,
		nodes:   store,
		hasherF: hashing.NewSha256Hasher,
		retries: defaultRetries,
		backoff: defaultBackoff,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tree = smt.NewTree(e.hasherF, e.nodes)

	_, err := store.GetHead()
	switch {
	case err == nil:
		return e, nil
	case errors.Is(err, storage.ErrKeyNotFound):
		if err := e.commitGenesis(); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, err
	}
}

func (e *Engine) commitGenesis() error {
	genesis := chain.NewGenesis(e.tree.EmptyRoot(), e.now().UnixNano())
	encoded, err := protocol.EncodeEpoch(genesis)
	if err != nil {
		return err
	}
	head := &storage.Head{Number: 0, Root: genesis.Root, Epoch: encoded}
	err = e.store.CASHead(nil, head)
	if errors.Is(err, storage.ErrConflict) {
		// someone else initialized the store first; that genesis is as
		// good as ours
		return nil
	}
	return err
}

// Head returns the current epoch.
func (e *Engine) Head() (*chain.Epoch, error) {
	head, err := e.store.GetHead()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeEpoch(head.Epoch)
}

// Commit applies a write batch on top of the current head and advances the
// chain by exactly one epoch. On a CAS conflict the batch is recomputed
// against the new head, up to the configured retry budget. Concurrent
// committers therefore serialize at the CAS: one wins, the others recompute,
// and no committed mutation is ever silently lost.
func (e *Engine) Commit(batch *smt.Batch, metadata []byte) (*chain.Epoch, error) {
	timer := time.Now()
	defer func() {
		metrics.VerikvEngineCommitDurationSeconds.Observe(time.Since(timer).Seconds())
	}()

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			metrics.VerikvEngineCommitRetriesTotal.Inc()
		}

		current, err := e.Head()
		if err != nil {
			return nil, err
		}

		newRoot, mutations, err := e.tree.Apply(current.Root, batch)
		if err != nil {
			return nil, err
		}
		if err := e.nodes.PutNodes(mutations); err != nil {
			if isTransient(err) {
				e.sleepBackoff(attempt)
				continue
			}
			return nil, err
		}
		if indexer, ok := e.store.(storage.KeyIndexer); ok {
			if err := indexer.PutKeys(batch.Keys()); err != nil {
				return nil, err
			}
		}

		epoch := current.Next(newRoot, metadata, e.now().UnixNano())
		encoded, err := protocol.EncodeEpoch(epoch)
		if err != nil {
			return nil, err
		}

		err = e.store.CASHead(current.Root, &storage.Head{
			Number: epoch.Number,
			Root:   epoch.Root,
			Epoch:  encoded,
		})
		switch {
		case err == nil:
			metrics.VerikvEngineCommitsTotal.Inc()
			log.Debugf("Committed epoch %d with root %x", epoch.Number, epoch.Root)
			return epoch, nil
		case errors.Is(err, storage.ErrConflict):
			metrics.VerikvEngineCommitConflictsTotal.Inc()
			log.Debugf("Head conflict on epoch %d, recomputing against new head", epoch.Number)
			continue
		case isTransient(err):
			// the CAS outcome is unknown; the next attempt reloads the
			// head, so it either recomputes on top of the landed commit
			// or simply retries
			if landed, herr := e.headLanded(epoch.Root); herr == nil && landed {
				metrics.VerikvEngineCommitsTotal.Inc()
				return epoch, nil
			}
			e.sleepBackoff(attempt)
			continue
		default:
			return nil, err
		}
	}

	metrics.VerikvEngineCommitsAbortedTotal.Inc()
	return nil, ErrCommitAborted
}

// sleepBackoff delays the next attempt after a transient backend failure,
// doubling the delay per attempt. Conflicts retry immediately: the head
// already moved, so there is nothing to wait out.
func (e *Engine) sleepBackoff(attempt int) {
	if e.backoff <= 0 {
		return
	}
	time.Sleep(e.backoff << uint(attempt))
}

// headLanded reports whether the stored head already carries the given
// root, meaning a CAS whose reply was lost actually succeeded.
func (e *Engine) headLanded(root hashing.Digest) (bool, error) {
	head, err := e.store.GetHead()
	if err != nil {
		return false, err
	}
	return bytes.Equal(head.Root, root), nil
}

// Get returns the value digest stored under key at the current head.
func (e *Engine) Get(key []byte) (hashing.Digest, error) {
	metrics.VerikvEngineGetsTotal.Inc()
	head, err := e.Head()
	if err != nil {
		return nil, err
	}
	return e.tree.Get(head.Root, key)
}

// GetAt returns the value digest stored under key at any published root.
func (e *Engine) GetAt(root hashing.Digest, key []byte) (hashing.Digest, error) {
	metrics.VerikvEngineGetsTotal.Inc()
	return e.tree.Get(root, key)
}

// GetValue materializes the value bytes stored under key at the current
// head. Values are content-addressed, so the fetched bytes are validated
// against the digest committed in the tree.
func (e *Engine) GetValue(key []byte) ([]byte, error) {
	digest, err := e.Get(key)
	if err != nil {
		return nil, err
	}
	value, err := e.nodes.GetNode(digest)
	if err != nil {
		return nil, err
	}
	if actual := e.hasherF().Do(value); !bytes.Equal(actual, digest) {
		return nil, &storage.CorruptionError{Expected: digest, Actual: actual}
	}
	return value, nil
}

// Prove builds an inclusion or non-inclusion proof for key at the current
// head. The proof verifies against the head root alone.
func (e *Engine) Prove(key []byte) (*smt.Proof, *chain.Epoch, error) {
	metrics.VerikvEngineProofsTotal.Inc()
	head, err := e.Head()
	if err != nil {
		return nil, nil, err
	}
	proof, err := e.tree.Prove(head.Root, key)
	if err != nil {
		return nil, nil, err
	}
	return proof, head, nil
}

// ProveAt builds a proof against any published root.
func (e *Engine) ProveAt(root hashing.Digest, key []byte) (*smt.Proof, error) {
	metrics.VerikvEngineProofsTotal.Inc()
	return e.tree.Prove(root, key)
}

// History returns the epochs in [from, to], requiring the adapter's
// EpochReader capability.
func (e *Engine) History(from, to uint64) ([]*chain.Epoch, error) {
	reader, ok := e.store.(storage.EpochReader)
	if !ok {
		return nil, errors.New("engine: backend does not expose epoch history")
	}
	raw, err := reader.ScanEpochs(from, to)
	if err != nil {
		return nil, err
	}
	epochs := make([]*chain.Epoch, 0, len(raw))
	for _, bytes := range raw {
		epoch, err := protocol.DecodeEpoch(bytes)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, epoch)
	}
	return epochs, nil
}

// Audit exports the epochs in [from, to] and checks the chain linkage.
func (e *Engine) Audit(from, to uint64) ([]*chain.Epoch, bool, error) {
	epochs, err := e.History(from, to)
	if err != nil {
		return nil, false, err
	}
	return epochs, chain.VerifyChain(epochs), nil
}

// ScanKeys enumerates logical keys through the adapter's optional scan
// capability. Enumeration is tooling; it takes no part in proofs.
func (e *Engine) ScanKeys(start, end []byte) (storage.KeyReader, error) {
	scanner, ok := e.store.(storage.KeyScanner)
	if !ok {
		return nil, errors.New("engine: backend does not expose key enumeration")
	}
	return scanner.ScanKeys(start, end)
}

func (e *Engine) Close() error {
	return e.store.Close()
}

func isTransient(err error) bool {
	var ioErr *storage.IOError
	return errors.As(err, &ioErr)
}
