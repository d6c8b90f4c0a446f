// Package rowmask implements a flat, growable bitset recording the
// per-row mask bit of spec.md §3/§4.8.
//
// This is adapted from circular/bitmap.go's word-array bookkeeping: we
// keep its []uintptr word array and manual bit-twiddling (Set/Clear),
// and its use of bitset.Test for reads, but drop the 2-D
// sliding/circular-window machinery entirely. That machinery existed
// to bound memory over a scanning pileup window; a SubTable is a flat
// append-only row store, not a sliding window, so there is nothing to
// wrap around.
package rowmask

import "github.com/grailbio/base/bitset"

const bitsPerWord = bitset.BitsPerWord

// Mask is a growable, one-bit-per-row mask. The zero value is a valid
// empty mask.
type Mask struct {
	words []uintptr
	n     int // number of rows tracked so far.
}

// Grow ensures the mask can address at least n rows, initializing any
// newly-visible rows to unmasked (false).
func (m *Mask) Grow(n int) {
	if n <= m.n {
		return
	}
	needWords := (n + bitsPerWord - 1) / bitsPerWord
	if needWords > len(m.words) {
		grown := make([]uintptr, needWords)
		copy(grown, m.words)
		m.words = grown
	}
	m.n = n
}

// Set marks row i as masked (true) or unmasked (false). It grows the
// mask if i is beyond the current length.
func (m *Mask) Set(i int, masked bool) {
	if i >= m.n {
		m.Grow(i + 1)
	}
	wordIdx, bit := i/bitsPerWord, uint(i%bitsPerWord)
	if masked {
		m.words[wordIdx] |= uintptr(1) << bit
	} else {
		m.words[wordIdx] &^= uintptr(1) << bit
	}
}

// Get reports whether row i is masked. Rows beyond the current length
// are unmasked.
func (m *Mask) Get(i int) bool {
	if i >= m.n {
		return false
	}
	wordIdx := i / bitsPerWord
	return bitset.Test(m.words[wordIdx:wordIdx+1], i%bitsPerWord)
}

// Len returns the number of rows the mask currently tracks.
func (m *Mask) Len() int { return m.n }

// Words returns the mask's raw backing words and row count, for
// callers that need to serialize a mask (e.g. as a single block-level
// bitmap alongside columnar row data).
func (m *Mask) Words() ([]uintptr, int) { return m.words, m.n }

// FromWords reconstructs a Mask from words and a row count previously
// obtained from Words.
func FromWords(words []uintptr, n int) Mask {
	return Mask{words: append([]uintptr(nil), words...), n: n}
}
