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

package cmd

import (
	"fmt"
	"os"

	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/engine"
	"github.com/bbva/verikv/storage"
	"github.com/bbva/verikv/storage/badger"
	"github.com/bbva/verikv/storage/bplus"
	"github.com/bbva/verikv/storage/sqlite"
)

type cmdContext struct {
	path, backend, hasher, logLevel string
}

func (ctx *cmdContext) openStore() (storage.Store, error) {
	switch ctx.backend {
	case "badger":
		return badger.NewBadgerStore(ctx.path)
	case "sqlite":
		// badger creates its directory itself; sqlite needs it to exist
		if err := os.MkdirAll(ctx.path, 0755); err != nil {
			return nil, err
		}
		return sqlite.NewSQLiteStore(ctx.path + "/verikv.db")
	case "bplus":
		return bplus.NewBPlusTreeStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", ctx.backend)
	}
}

func (ctx *cmdContext) hasherF() (func() hashing.Hasher, error) {
	switch ctx.hasher {
	case "sha256":
		return hashing.NewSha256Hasher, nil
	case "blake2b":
		return hashing.NewBlake2bHasher, nil
	case "blake3":
		return hashing.NewBlake3Hasher, nil
	default:
		return nil, fmt.Errorf("unknown hash function: %s", ctx.hasher)
	}
}

func (ctx *cmdContext) openEngine() (*engine.Engine, error) {
	store, err := ctx.openStore()
	if err != nil {
		return nil, err
	}
	hasherF, err := ctx.hasherF()
	if err != nil {
		store.Close()
		return nil, err
	}
	return engine.Open(store, engine.WithHasher(hasherF))
}
