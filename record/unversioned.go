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

	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/engine"
	"github.com/bbva/verikv/smt"
	"github.com/bbva/verikv/storage"
)

// UnversionedRepository stores self-addressed records that carry no lineage:
// each record is addressable by content alone under said/<said>. Writes are
// single engine commits, so stored records inherit membership proofs the
// same way versioned ones do.
type UnversionedRepository[T SelfAddressing] struct {
	engine  *engine.Engine
	factory func() T

	hasherF func() hashing.Hasher
}

type UnversionedRepoOption[T SelfAddressing] func(*UnversionedRepository[T])

// WithUnversionedHasher selects the hasher used for SAID derivation.
func WithUnversionedHasher[T SelfAddressing](hasherF func() hashing.Hasher) UnversionedRepoOption[T] {
	return func(r *UnversionedRepository[T]) {
		r.hasherF = hasherF
	}
}

func NewUnversionedRepository[T SelfAddressing](eng *engine.Engine, factory func() T, opts ...UnversionedRepoOption[T]) *UnversionedRepository[T] {
	r := &UnversionedRepository[T]{
		engine:  eng,
		factory: factory,
		hasherF: hashing.NewBlake3Hasher,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create derives the record's SAID and commits it. The record is mutated in
// place with its identifier.
func (r *UnversionedRepository[T]) Create(rec T) (*chain.Epoch, error) {
	if err := Derive(rec, r.hasherF()); err != nil {
		return nil, err
	}
	return r.commit(rec)
}

// Insert commits a record whose SAID was derived elsewhere, after verifying
// it.
func (r *UnversionedRepository[T]) Insert(rec T) (*chain.Epoch, error) {
	if err := Verify(rec, r.hasherF()); err != nil {
		return nil, err
	}
	return r.commit(rec)
}

func (r *UnversionedRepository[T]) commit(rec T) (*chain.Epoch, error) {
	data, err := rec.CanonicalEncode()
	if err != nil {
		return nil, err
	}
	return r.engine.Commit(smt.NewBatch().Put(saidKey(rec.SAID()), data), nil)
}

// GetBySAID retrieves a record by content address and verifies it before
// returning.
func (r *UnversionedRepository[T]) GetBySAID(said string) (T, error) {
	rec := r.factory()
	data, err := r.engine.GetValue(saidKey(said))
	if err != nil {
		return rec, err
	}
	if err := rec.CanonicalDecode(data); err != nil {
		return rec, err
	}
	if err := Verify(rec, r.hasherF()); err != nil {
		return rec, err
	}
	return rec, nil
}

// Exists reports whether a record with the given SAID is stored.
func (r *UnversionedRepository[T]) Exists(said string) (bool, error) {
	_, err := r.engine.Get(saidKey(said))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
