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

package record

import (
	"errors"
	"time"

	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/engine"
	"github.com/bbva/verikv/smt"
	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/util"
)

// Repository stores one record type in the engine under three key families:
//
//	said/<said>        every version, addressable by content
//	head/<prefix>      the latest version of a lineage
//	ver/<prefix>/<n>   every version, addressable by number (big-endian,
//	                   so adapter key scans list them in order)
//
// Every write is a single engine commit, so stored records inherit epoch
// membership proofs without any extra machinery.
type Repository[T Versioned] struct {
	engine  *engine.Engine
	factory func() T

	hasherF func() hashing.Hasher
	now     func() time.Time
}

type RepoOption[T Versioned] func(*Repository[T])

// WithRepoHasher selects the hasher used for SAID derivation. It is
// independent of the engine's tree hasher.
func WithRepoHasher[T Versioned](hasherF func() hashing.Hasher) RepoOption[T] {
	return func(r *Repository[T]) {
		r.hasherF = hasherF
	}
}

// WithRepoClock substitutes the created-at source. Used by tests.
func WithRepoClock[T Versioned](now func() time.Time) RepoOption[T] {
	return func(r *Repository[T]) {
		r.now = now
	}
}

// NewRepository builds a repository for one record type. The factory returns
// a fresh zero record for decoding.
func NewRepository[T Versioned](eng *engine.Engine, factory func() T, opts ...RepoOption[T]) *Repository[T] {
	r := &Repository[T]{
		engine:  eng,
		factory: factory,
		hasherF: hashing.NewBlake3Hasher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create derives the first version of a record and commits it. The record is
// mutated in place with its SAID, prefix and version.
func (r *Repository[T]) Create(rec T) (*chain.Epoch, error) {
	if err := DeriveFirst(rec, r.hasherF(), r.now().UnixNano()); err != nil {
		return nil, err
	}
	return r.commit(rec)
}

// Update advances a record to its next version and commits it. The caller
// passes the record with its content already modified; Update rederives the
// identifiers. An update whose content did not change is rejected with
// ErrUnchanged rather than committing a duplicate version.
func (r *Repository[T]) Update(rec T) (*chain.Epoch, error) {
	unchanged, err := UnchangedVersioned(rec, r.hasherF())
	if err != nil {
		return nil, err
	}
	if unchanged {
		return nil, ErrUnchanged
	}
	if err := Increment(rec, r.hasherF(), r.now().UnixNano()); err != nil {
		return nil, err
	}
	return r.commit(rec)
}

// Insert commits a record whose identifiers were derived elsewhere, after
// verifying them. Used when replicating records between stores.
func (r *Repository[T]) Insert(rec T) (*chain.Epoch, error) {
	if err := VerifyRecord(rec, r.hasherF()); err != nil {
		return nil, err
	}
	return r.commit(rec)
}

func (r *Repository[T]) commit(rec T) (*chain.Epoch, error) {
	data, err := rec.CanonicalEncode()
	if err != nil {
		return nil, err
	}
	batch := smt.NewBatch().
		Put(saidKey(rec.SAID()), data).
		Put(headKey(rec.Prefix()), data).
		Put(versionKey(rec.Prefix(), rec.Version()), data)
	return r.engine.Commit(batch, nil)
}

// GetBySAID retrieves any version by content address and verifies it before
// returning.
func (r *Repository[T]) GetBySAID(said string) (T, error) {
	return r.fetch(saidKey(said))
}

// GetLatest returns the most recent version of a lineage.
func (r *Repository[T]) GetLatest(prefix string) (T, error) {
	return r.fetch(headKey(prefix))
}

// GetHistory returns every version of a lineage in version order.
func (r *Repository[T]) GetHistory(prefix string) ([]T, error) {
	latest, err := r.GetLatest(prefix)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	history := make([]T, 0, latest.Version()+1)
	for v := uint64(0); v <= latest.Version(); v++ {
		rec, err := r.fetch(versionKey(prefix, v))
		if err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, nil
}

// Exists reports whether a lineage has any version.
func (r *Repository[T]) Exists(prefix string) (bool, error) {
	_, err := r.engine.Get(headKey(prefix))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository[T]) fetch(key []byte) (T, error) {
	rec := r.factory()
	data, err := r.engine.GetValue(key)
	if err != nil {
		return rec, err
	}
	if err := rec.CanonicalDecode(data); err != nil {
		return rec, err
	}
	if err := VerifyRecord(rec, r.hasherF()); err != nil {
		return rec, err
	}
	return rec, nil
}

func saidKey(said string) []byte {
	return []byte("said/" + said)
}

func headKey(prefix string) []byte {
	return []byte("head/" + prefix)
}

func versionKey(prefix string, version uint64) []byte {
	return append([]byte("ver/"+prefix+"/"), util.Uint64AsBytes(version)...)
}
