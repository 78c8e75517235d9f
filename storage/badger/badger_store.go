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

// Package badger implements the backend adapter contract on an embedded
// Badger database. The head CAS runs inside a single serializable Badger
// transaction.
package badger

import (
	"bytes"

	b "github.com/dgraph-io/badger"

	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/util"
)

const (
	nodePrefix  = byte(0x0)
	keyPrefix   = byte(0x1)
	epochPrefix = byte(0x2)
	headPrefix  = byte(0x3)
)

var (
	headRootKey  = []byte{headPrefix, 0x0}
	headEpochKey = []byte{headPrefix, 0x1}
	headNumKey   = []byte{headPrefix, 0x2}
)

type BadgerStore struct {
	db *b.DB
}

// Options contains all the configuration used to open the Badger db.
type Options struct {
	// Path is the directory path to the Badger db to use.
	Path string

	// NoSync causes the database to skip fsync calls after each
	// write. This is unsafe, so it should be used with caution.
	NoSync bool
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	return NewBadgerStoreOpts(&Options{Path: path})
}

func NewBadgerStoreOpts(opts *Options) (*BadgerStore, error) {
	bOpts := b.DefaultOptions(opts.Path)
	bOpts.SyncWrites = !opts.NoSync
	bOpts.Logger = nil

	db, err := b.Open(bOpts)
	if err != nil {
		return nil, &storage.IOError{Op: "open", Err: err}
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) GetNode(digest []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *b.Txn) error {
		item, err := txn.Get(prefixed(nodePrefix, digest))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == b.ErrKeyNotFound:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get node", Err: err}
	}
	return value, nil
}

func (s *BadgerStore) PutNodes(nodes []storage.Node) error {
	err := s.db.Update(func(txn *b.Txn) error {
		for _, n := range nodes {
			if err := txn.Set(prefixed(nodePrefix, n.Digest), n.Bytes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &storage.IOError{Op: "put nodes", Err: err}
	}
	return nil
}

func (s *BadgerStore) GetHead() (*storage.Head, error) {
	var head *storage.Head
	err := s.db.View(func(txn *b.Txn) error {
		root, err := getValue(txn, headRootKey)
		if err != nil {
			return err
		}
		epoch, err := getValue(txn, headEpochKey)
		if err != nil {
			return err
		}
		num, err := getValue(txn, headNumKey)
		if err != nil {
			return err
		}
		head = &storage.Head{Number: util.BytesAsUint64(num), Root: root, Epoch: epoch}
		return nil
	})
	switch {
	case err == b.ErrKeyNotFound:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get head", Err: err}
	}
	return head, nil
}

func (s *BadgerStore) CASHead(expectedRoot []byte, head *storage.Head) error {
	err := s.db.Update(func(txn *b.Txn) error {
		current, err := getValue(txn, headRootKey)
		switch {
		case err == b.ErrKeyNotFound:
			if expectedRoot != nil {
				return storage.ErrConflict
			}
		case err != nil:
			return err
		default:
			if !bytes.Equal(current, expectedRoot) {
				return storage.ErrConflict
			}
		}
		if err := txn.Set(headRootKey, head.Root); err != nil {
			return err
		}
		if err := txn.Set(headEpochKey, head.Epoch); err != nil {
			return err
		}
		if err := txn.Set(headNumKey, util.Uint64AsBytes(head.Number)); err != nil {
			return err
		}
		return txn.Set(prefixed(epochPrefix, util.Uint64AsBytes(head.Number)), head.Epoch)
	})
	switch {
	case err == storage.ErrConflict:
		return storage.ErrConflict
	case err != nil:
		return &storage.IOError{Op: "cas head", Err: err}
	}
	return nil
}

func (s *BadgerStore) PutKeys(keys [][]byte) error {
	err := s.db.Update(func(txn *b.Txn) error {
		for _, k := range keys {
			if err := txn.Set(prefixed(keyPrefix, k), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &storage.IOError{Op: "put keys", Err: err}
	}
	return nil
}

func (s *BadgerStore) ScanKeys(start, end []byte) (storage.KeyReader, error) {
	return newBadgerKeyReader(s.db, start, end), nil
}

func (s *BadgerStore) GetEpoch(number uint64) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *b.Txn) error {
		item, err := txn.Get(prefixed(epochPrefix, util.Uint64AsBytes(number)))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == b.ErrKeyNotFound:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get epoch", Err: err}
	}
	return value, nil
}

func (s *BadgerStore) ScanEpochs(from, to uint64) ([][]byte, error) {
	if from > to {
		return nil, nil
	}
	result := make([][]byte, 0, to-from+1)
	err := s.db.View(func(txn *b.Txn) error {
		for n := from; n <= to; n++ {
			item, err := txn.Get(prefixed(epochPrefix, util.Uint64AsBytes(n)))
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result = append(result, value)
		}
		return nil
	})
	switch {
	case err == b.ErrKeyNotFound:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "scan epochs", Err: err}
	}
	return result, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func getValue(txn *b.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func prefixed(prefix byte, key []byte) []byte {
	return append([]byte{prefix}, key...)
}

type badgerKeyReader struct {
	db   *b.DB
	next []byte
	end  []byte
	done bool
}

func newBadgerKeyReader(db *b.DB, start, end []byte) *badgerKeyReader {
	return &badgerKeyReader{db: db, next: prefixed(keyPrefix, start), end: end}
}

func (r *badgerKeyReader) Read(buffer [][]byte) (n int, err error) {
	if r.done {
		return 0, nil
	}
	err = r.db.View(func(txn *b.Txn) error {
		opts := b.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(r.next); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if key[0] != keyPrefix {
				r.done = true
				return nil
			}
			if r.end != nil && bytes.Compare(key[1:], r.end) >= 0 {
				r.done = true
				return nil
			}
			if n >= len(buffer) {
				return nil
			}
			buffer[n] = key[1:]
			n++
			r.next = append(append([]byte{}, key...), 0x0)
		}
		r.done = true
		return nil
	})
	if err != nil {
		return n, &storage.IOError{Op: "scan keys", Err: err}
	}
	return n, nil
}

func (r *badgerKeyReader) Close() {
	r.done = true
}
