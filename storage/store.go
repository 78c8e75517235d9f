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

// Package storage defines the abstract persistence contract the engine
// requires from any backend. Nodes are immutable and content-addressed by
// digest; the head pointer is the only mutable datum and the only operation
// that requires atomicity from the backend is CASHead.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is the normal outcome of a miss, not a failure.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrConflict signals that the stored head no longer matches the
	// expected root. The engine facade retries it; nothing below does.
	ErrConflict = errors.New("storage: head conflict")
)

// IOError wraps a transient backend failure. Adapters wrap their driver
// errors with it so the engine can distinguish retriable I/O trouble from
// fatal corruption.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError reports a fetched node whose bytes do not hash to the
// digest its parent expects. It indicates tampering or backend inconsistency
// and is never retried.
type CorruptionError struct {
	Expected []byte
	Actual   []byte
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("storage: corrupted node: expected digest %x, got %x", e.Expected, e.Actual)
}

// Node is a content-addressed tree node or value blob: Digest is always the
// hash of Bytes, which makes PutNodes idempotent and partially written
// batches harmless orphans.
type Node struct {
	Digest []byte
	Bytes  []byte
}

func NewNode(digest, bytes []byte) Node {
	return Node{Digest: digest, Bytes: bytes}
}

// Head is the current commitment: the root digest plus the encoded epoch
// record that produced it. Epoch bytes are opaque to adapters except for the
// Number, which adapters use to index the epoch history.
type Head struct {
	Number uint64
	Root   []byte
	Epoch  []byte
}

// Store is the sole boundary concrete backends must implement.
type Store interface {
	// GetNode returns the bytes stored under a digest, or ErrKeyNotFound.
	GetNode(digest []byte) ([]byte, error)

	// PutNodes persists a batch of content-addressed nodes. Batched to
	// amortize round trips; re-putting an existing digest is a no-op.
	PutNodes(nodes []Node) error

	// GetHead returns the current head, or ErrKeyNotFound when the store
	// has never been committed to.
	GetHead() (*Head, error)

	// CASHead atomically replaces the head iff the stored head root equals
	// expectedRoot. A nil expectedRoot means "expect no head". On mismatch
	// it returns ErrConflict. This is the only call that needs true
	// atomicity from the backend.
	CASHead(expectedRoot []byte, head *Head) error

	Close() error
}

// KeyIndexer is an optional capability: adapters that implement it receive
// the logical keys touched by each commit, enabling enumeration tooling.
type KeyIndexer interface {
	PutKeys(keys [][]byte) error
}

// KeyReader iterates lazily over indexed keys.
type KeyReader interface {
	Read(buffer [][]byte) (n int, err error)
	Close()
}

// KeyScanner is an optional capability used only by enumeration tooling,
// never by proof logic. Scans keys in [start, end); a nil end means no
// upper bound.
type KeyScanner interface {
	ScanKeys(start, end []byte) (KeyReader, error)
}

// EpochReader is an optional capability exposing the append-only epoch
// history for export and audit. Adapters record each epoch inside the
// CASHead transaction.
type EpochReader interface {
	GetEpoch(number uint64) ([]byte, error)
	ScanEpochs(from, to uint64) ([][]byte, error)
}
