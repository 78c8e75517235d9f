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

package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64Roundtrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 255, 256, 1 << 32, 1<<64 - 1} {
		assert.Equal(t, n, BytesAsUint64(Uint64AsBytes(n)))
	}
}

func TestUint64BytesPreserveOrder(t *testing.T) {
	// big-endian encoding keeps lexicographic order aligned with numeric
	assert.Negative(t, bytes.Compare(Uint64AsBytes(41), Uint64AsBytes(42)))
	assert.Negative(t, bytes.Compare(Uint64AsBytes(255), Uint64AsBytes(256)))
	assert.Negative(t, bytes.Compare(Uint64AsBytes(1<<32-1), Uint64AsBytes(1<<32)))
}
