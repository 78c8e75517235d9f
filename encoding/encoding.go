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

// Package encoding defines the canonical encoding contract every stored
// record type must satisfy, and a deterministic CBOR codec that satisfies it
// for arbitrary struct types. The engine only ever computes digests from
// canonical bytes; it never depends on how those bytes were produced, so
// hand-written encoders, generated code or the reflection-based codec here
// are interchangeable.
package encoding

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encodable is the capability a stored record type must provide: a
// deterministic byte encoding and its inverse. Two equal values must encode
// to identical bytes, since those bytes are what gets content-addressed.
type Encodable interface {
	CanonicalEncode() ([]byte, error)
	CanonicalDecode(data []byte) error
}

// Codec produces canonical bytes for arbitrary values.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// Error wraps any canonical encode/decode failure. It is fatal: the engine
// surfaces it unchanged and never retries it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoding: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CBORCodec implements Codec with CBOR Core Deterministic Encoding: sorted
// map keys, shortest-form integers, no floating point ambiguity.
type CBORCodec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

func NewCBORCodec() *CBORCodec {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("Error creating CBOR encoding mode %v", err))
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("Error creating CBOR decoding mode %v", err))
	}
	return &CBORCodec{em: em, dm: dm}
}

func (c *CBORCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := c.em.Marshal(v)
	if err != nil {
		return nil, &Error{Op: "marshal", Err: err}
	}
	return data, nil
}

func (c *CBORCodec) Unmarshal(data []byte, v interface{}) error {
	if err := c.dm.Unmarshal(data, v); err != nil {
		return &Error{Op: "unmarshal", Err: err}
	}
	return nil
}
