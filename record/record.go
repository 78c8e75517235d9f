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

// Package record implements self-addressed, versioned typed records on top
// of the engine. A record's SAID is the hex digest of its canonical encoding
// with the SAID field zeroed, so the identifier commits to the content. A
// versioned record additionally carries a stable lineage prefix (the SAID at
// version 0) and a previous pointer, forming a hash-linked version chain.
package record

import (
	"encoding/hex"
	"errors"

	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/encoding"
)

var (
	// ErrSAIDMismatch means the record's SAID does not match its content.
	ErrSAIDMismatch = errors.New("record: SAID does not match content")

	// ErrPrefixMismatch means a version-0 record's prefix is not its SAID.
	ErrPrefixMismatch = errors.New("record: prefix does not match version-0 SAID")

	// ErrUnchanged means an update carried no content change, so a new
	// version would duplicate the current one.
	ErrUnchanged = errors.New("record: content unchanged since last version")
)

// SelfAddressing is the capability a content-addressed record type must
// provide on top of its canonical encoding. SetSAID("") must zero the field
// so Derive can hash the content without the identifier.
type SelfAddressing interface {
	encoding.Encodable
	SAID() string
	SetSAID(said string)
}

// Versioned extends SelfAddressing with lineage accessors. The prefix is
// set once at version 0 and never changes; every later version links to its
// predecessor through the previous SAID.
type Versioned interface {
	SelfAddressing
	Prefix() string
	SetPrefix(prefix string)
	Version() uint64
	SetVersion(version uint64)
	Previous() string
	SetPrevious(said string)
	CreatedAt() int64
	SetCreatedAt(ts int64)
}

// Derive computes and sets the record's SAID.
func Derive(rec SelfAddressing, hasher hashing.Hasher) error {
	said, err := computeSAID(rec, hasher)
	if err != nil {
		return err
	}
	rec.SetSAID(said)
	return nil
}

// Verify recomputes the SAID and compares it with the one the record
// carries. The record is restored to its original state either way.
func Verify(rec SelfAddressing, hasher hashing.Hasher) error {
	claimed := rec.SAID()
	derived, err := computeSAID(rec, hasher)
	rec.SetSAID(claimed)
	if err != nil {
		return err
	}
	if derived != claimed {
		return ErrSAIDMismatch
	}
	return nil
}

// Unchanged reports whether the record's content still hashes to the SAID it
// carries, meaning nothing was modified since the identifier was derived.
// The record is restored to its original state either way.
func Unchanged(rec SelfAddressing, hasher hashing.Hasher) (bool, error) {
	claimed := rec.SAID()
	derived, err := computeSAID(rec, hasher)
	rec.SetSAID(claimed)
	if err != nil {
		return false, err
	}
	return derived == claimed, nil
}

// UnchangedVersioned is Unchanged for versioned records, honoring the
// version-0 convention of deriving the SAID with the prefix zeroed.
func UnchangedVersioned(rec Versioned, hasher hashing.Hasher) (bool, error) {
	if rec.Version() > 0 {
		return Unchanged(rec, hasher)
	}
	prefix := rec.Prefix()
	rec.SetPrefix("")
	unchanged, err := Unchanged(rec, hasher)
	rec.SetPrefix(prefix)
	return unchanged, err
}

// DeriveFirst seeds a version-0 record: version and previous are reset, the
// SAID is derived with an empty prefix, and the prefix is set to that SAID.
// The prefix is the lineage identifier every later version keeps.
func DeriveFirst(rec Versioned, hasher hashing.Hasher, createdAt int64) error {
	rec.SetVersion(0)
	rec.SetPrevious("")
	rec.SetPrefix("")
	rec.SetCreatedAt(createdAt)
	if err := Derive(rec, hasher); err != nil {
		return err
	}
	rec.SetPrefix(rec.SAID())
	return nil
}

// Increment advances a record to its next version: previous takes the
// current SAID, the version counter moves up and the SAID is rederived over
// the new content. The prefix stays.
func Increment(rec Versioned, hasher hashing.Hasher, createdAt int64) error {
	rec.SetPrevious(rec.SAID())
	rec.SetVersion(rec.Version() + 1)
	rec.SetCreatedAt(createdAt)
	return Derive(rec, hasher)
}

// VerifyRecord checks a versioned record according to its version: version 0
// must carry its SAID as prefix and verify with the prefix zeroed, later
// versions verify the SAID over the full content.
func VerifyRecord(rec Versioned, hasher hashing.Hasher) error {
	if rec.Version() > 0 {
		return Verify(rec, hasher)
	}
	if rec.SAID() != rec.Prefix() {
		return ErrPrefixMismatch
	}
	prefix := rec.Prefix()
	rec.SetPrefix("")
	err := Verify(rec, hasher)
	rec.SetPrefix(prefix)
	return err
}

func computeSAID(rec SelfAddressing, hasher hashing.Hasher) (string, error) {
	rec.SetSAID("")
	data, err := rec.CanonicalEncode()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Do(data)), nil
}
