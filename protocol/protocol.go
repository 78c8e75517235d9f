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

// Package protocol defines the stable wire formats for proofs and epochs.
// Every envelope starts with a format version byte followed by
// deterministic CBOR; decoders reject unknown versions. Externally stored
// proofs must remain verifiable against historical roots indefinitely, so
// any layout change requires a new version byte, never a reinterpretation
// of an old one.
package protocol

import (
	"errors"
	"fmt"

	"github.com/bbva/verikv/chain"
	"github.com/bbva/verikv/crypto/hashing"
	"github.com/bbva/verikv/encoding"
	"github.com/bbva/verikv/smt"
)

// Version is the current wire format version.
const Version = byte(0x01)

var ErrUnknownVersion = errors.New("protocol: unknown wire format version")

var codec = encoding.NewCBORCodec()

type proofEnvelope struct {
	Siblings  [][]byte `cbor:"1,keyasint"`
	LeafKey   []byte   `cbor:"2,keyasint,omitempty"`
	LeafValue []byte   `cbor:"3,keyasint,omitempty"`
}

type epochEnvelope struct {
	Number    uint64 `cbor:"1,keyasint"`
	Root      []byte `cbor:"2,keyasint"`
	PrevRoot  []byte `cbor:"3,keyasint"`
	Metadata  []byte `cbor:"4,keyasint,omitempty"`
	Timestamp int64  `cbor:"5,keyasint"`
}

func EncodeProof(p *smt.Proof) ([]byte, error) {
	env := proofEnvelope{
		Siblings:  make([][]byte, len(p.Siblings)),
		LeafKey:   p.LeafKey,
		LeafValue: p.LeafValue,
	}
	for i, s := range p.Siblings {
		env.Siblings[i] = s
	}
	return seal(env)
}

func DecodeProof(data []byte, hasherF func() hashing.Hasher) (*smt.Proof, error) {
	var env proofEnvelope
	if err := open(data, &env); err != nil {
		return nil, err
	}
	siblings := make([]hashing.Digest, len(env.Siblings))
	for i, s := range env.Siblings {
		siblings[i] = s
	}
	return smt.NewProof(siblings, env.LeafKey, env.LeafValue, hasherF()), nil
}

func EncodeEpoch(e *chain.Epoch) ([]byte, error) {
	return seal(epochEnvelope{
		Number:    e.Number,
		Root:      e.Root,
		PrevRoot:  e.PrevRoot,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	})
}

func DecodeEpoch(data []byte) (*chain.Epoch, error) {
	var env epochEnvelope
	if err := open(data, &env); err != nil {
		return nil, err
	}
	return &chain.Epoch{
		Number:    env.Number,
		Root:      env.Root,
		PrevRoot:  env.PrevRoot,
		Metadata:  env.Metadata,
		Timestamp: env.Timestamp,
	}, nil
}

func seal(v interface{}) ([]byte, error) {
	body, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{Version}, body...), nil
}

func open(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("protocol: empty envelope")
	}
	if data[0] != Version {
		return fmt.Errorf("%w: %#x", ErrUnknownVersion, data[0])
	}
	return codec.Unmarshal(data[1:], v)
}
