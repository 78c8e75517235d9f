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

// Package sqlite implements the backend adapter contract on a relational
// store. The head lives in a single-row table and the CAS is a conditional
// update inside one transaction, which is the only atomicity the engine
// requires.
package sqlite

import (
	"bytes"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bbva/verikv/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	digest BLOB PRIMARY KEY,
	bytes  BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS keys (
	key BLOB PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS epochs (
	number INTEGER PRIMARY KEY,
	bytes  BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS head (
	id     INTEGER PRIMARY KEY CHECK (id = 0),
	number INTEGER NOT NULL,
	root   BLOB NOT NULL,
	epoch  BLOB NOT NULL
);
`

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given DSN and
// initializes the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &storage.IOError{Op: "open", Err: err}
	}
	// a single connection keeps transactions serialized and avoids
	// SQLITE_BUSY on concurrent CAS attempts
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return &storage.IOError{Op: "initialize", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetNode(digest []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT bytes FROM nodes WHERE digest = ?", digest).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get node", Err: err}
	}
	return value, nil
}

func (s *SQLiteStore) PutNodes(nodes []storage.Node) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &storage.IOError{Op: "put nodes", Err: err}
	}
	for _, n := range nodes {
		if _, err := tx.Exec("INSERT OR IGNORE INTO nodes (digest, bytes) VALUES (?, ?)", n.Digest, n.Bytes); err != nil {
			tx.Rollback()
			return &storage.IOError{Op: "put nodes", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &storage.IOError{Op: "put nodes", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetHead() (*storage.Head, error) {
	head := new(storage.Head)
	err := s.db.QueryRow("SELECT number, root, epoch FROM head WHERE id = 0").
		Scan(&head.Number, &head.Root, &head.Epoch)
	switch {
	case err == sql.ErrNoRows:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get head", Err: err}
	}
	return head, nil
}

func (s *SQLiteStore) CASHead(expectedRoot []byte, head *storage.Head) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &storage.IOError{Op: "cas head", Err: err}
	}

	var current []byte
	err = tx.QueryRow("SELECT root FROM head WHERE id = 0").Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if expectedRoot != nil {
			tx.Rollback()
			return storage.ErrConflict
		}
	case err != nil:
		tx.Rollback()
		return &storage.IOError{Op: "cas head", Err: err}
	default:
		if !bytes.Equal(current, expectedRoot) {
			tx.Rollback()
			return storage.ErrConflict
		}
	}

	_, err = tx.Exec(`INSERT INTO head (id, number, root, epoch) VALUES (0, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET number = excluded.number, root = excluded.root, epoch = excluded.epoch`,
		head.Number, head.Root, head.Epoch)
	if err != nil {
		tx.Rollback()
		return &storage.IOError{Op: "cas head", Err: err}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO epochs (number, bytes) VALUES (?, ?)", head.Number, head.Epoch); err != nil {
		tx.Rollback()
		return &storage.IOError{Op: "cas head", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &storage.IOError{Op: "cas head", Err: err}
	}
	return nil
}

func (s *SQLiteStore) PutKeys(keys [][]byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &storage.IOError{Op: "put keys", Err: err}
	}
	for _, k := range keys {
		if _, err := tx.Exec("INSERT OR IGNORE INTO keys (key) VALUES (?)", k); err != nil {
			tx.Rollback()
			return &storage.IOError{Op: "put keys", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &storage.IOError{Op: "put keys", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ScanKeys(start, end []byte) (storage.KeyReader, error) {
	// a nil bound would compare as SQL NULL, so bounds are only added
	// when present
	if start == nil {
		start = []byte{}
	}
	var rows *sql.Rows
	var err error
	if end != nil {
		rows, err = s.db.Query("SELECT key FROM keys WHERE key >= ? AND key < ? ORDER BY key", start, end)
	} else {
		rows, err = s.db.Query("SELECT key FROM keys WHERE key >= ? ORDER BY key", start)
	}
	if err != nil {
		return nil, &storage.IOError{Op: "scan keys", Err: err}
	}
	return &sqliteKeyReader{rows: rows}, nil
}

func (s *SQLiteStore) GetEpoch(number uint64) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT bytes FROM epochs WHERE number = ?", number).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return nil, storage.ErrKeyNotFound
	case err != nil:
		return nil, &storage.IOError{Op: "get epoch", Err: err}
	}
	return value, nil
}

func (s *SQLiteStore) ScanEpochs(from, to uint64) ([][]byte, error) {
	rows, err := s.db.Query("SELECT bytes FROM epochs WHERE number >= ? AND number <= ? ORDER BY number", from, to)
	if err != nil {
		return nil, &storage.IOError{Op: "scan epochs", Err: err}
	}
	defer rows.Close()
	result := make([][]byte, 0, to-from+1)
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, &storage.IOError{Op: "scan epochs", Err: err}
		}
		result = append(result, value)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.IOError{Op: "scan epochs", Err: err}
	}
	return result, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteKeyReader struct {
	rows *sql.Rows
}

func (r *sqliteKeyReader) Read(buffer [][]byte) (n int, err error) {
	for n < len(buffer) && r.rows.Next() {
		var key []byte
		if err := r.rows.Scan(&key); err != nil {
			return n, &storage.IOError{Op: "scan keys", Err: err}
		}
		buffer[n] = key
		n++
	}
	if err := r.rows.Err(); err != nil {
		return n, &storage.IOError{Op: "scan keys", Err: err}
	}
	return n, nil
}

func (r *sqliteKeyReader) Close() {
	r.rows.Close()
}
