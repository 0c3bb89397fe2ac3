package crawler

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// TextHash is the 64-bit xxh3 of the lowercased UTF-8 bytes of s (whitespace
// unchanged), rendered as hex. Grounded on SPEC_FULL.md §3/§4.1; xxh3 is
// sourced from the ecosystem since no repo in the retrieval pack ships a true
// XXH3 implementation (cespare/xxhash/v2, present via the teacher's dependency
// tree, is XXH64 and is reused below for SimHash's per-token hashing instead).
func TextHash(s string) string {
	sum := xxh3.HashString(strings.ToLower(s))
	return fmt.Sprintf("%016x", sum)
}

// SimHash computes a genuine 64-bit locality-sensitive hash over s: tokenize on
// non-alphanumeric boundaries, hash each token to 64 bits, sum signed
// (+1/-1) contributions per bit column, and emit a 1 bit wherever the column
// sum is positive. This replaces the stand-in stdlib hash flagged as a bug in
// original_source/src/deduplication.rs (SPEC_FULL.md §9 "Sim-hash").
func SimHash(s string) string {
	var weights [64]int

	for _, tok := range tokenize(s) {
		h := xxhash.Sum64String(tok)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var out uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}

	return fmt.Sprintf("%016x", out)
}

// tokenize splits s on runs of non-alphanumeric characters, discarding empties.
func tokenize(s string) []string {
	lower := strings.ToLower(s)
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// HammingDistanceHex returns the Hamming distance between two 64-bit hashes
// given as 16-character hex strings. Returns -1 if either is malformed.
func HammingDistanceHex(a, b string) int {
	av, aok := parseHex64(a)
	bv, bok := parseHex64(b)
	if !aok || !bok {
		return -1
	}
	return bits.OnesCount64(av ^ bv)
}

func parseHex64(s string) (uint64, bool) {
	if len(s) != 16 {
		return 0, false
	}
	var v uint64
	for i := 0; i < 16; i++ {
		c := s[i]
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint64(c-'A') + 10
		default:
			return 0, false
		}
	}
	return v, true
}

// NearDuplicateThreshold is the maximum Hamming distance (inclusive) at which
// two SimHash values are considered near-duplicates (SPEC_FULL.md §4.1).
const NearDuplicateThreshold = 3
