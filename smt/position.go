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

package smt

// Bit returns the i-th bit of a key digest, MSB first. The sequence of bits
// is the leaf's path from the root: 0 goes left, 1 goes right.
func Bit(digest []byte, i int) byte {
	return (digest[i/8] >> uint(7-i%8)) & 1
}

// CommonPrefixLen returns the index of the first differing bit between two
// equally sized key digests, or the full bit length when they are equal.
func CommonPrefixLen(a, b []byte) int {
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}
		x := a[i] ^ b[i]
		bit := 0
		for x&0x80 == 0 {
			x <<= 1
			bit++
		}
		return i*8 + bit
	}
	return len(a) * 8
}
