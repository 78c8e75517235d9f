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

package storage

import (
	"fmt"
	"os"
	"testing"

	"github.com/bbva/verikv/storage/badger"
	"github.com/bbva/verikv/storage/bplus"
	"github.com/bbva/verikv/storage/sqlite"
)

func NewBPlusTreeStore() (*bplus.BPlusTreeStore, func()) {
	store := bplus.NewBPlusTreeStore()
	return store, func() {
		store.Close()
	}
}

func NewBadgerStore(t *testing.T, path string) (*badger.BadgerStore, func()) {
	store, err := badger.NewBadgerStore(path)
	if err != nil {
		t.Fatalf("Unable to open badger store: %v", err)
	}
	return store, func() {
		store.Close()
		deleteFile(path)
	}
}

func NewSQLiteStore(t *testing.T, path string) (*sqlite.SQLiteStore, func()) {
	store, err := sqlite.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Unable to open sqlite store: %v", err)
	}
	return store, func() {
		store.Close()
		deleteFile(path)
	}
}

func deleteFile(path string) {
	err := os.RemoveAll(path)
	if err != nil {
		fmt.Printf("Unable to remove db file %s", err)
	}
}
