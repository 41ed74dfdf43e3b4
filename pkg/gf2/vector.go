// Package gf2 implements vectors and square matrices over GF(2) with at most
// 64 coordinates. A vector is a bit mask; bit i is coordinate i.
package gf2

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxDim is the largest supported dimension.
const MaxDim = 64

// Vector is an element of GF(2)^n stored in the low n bits.
type Vector uint64

// Weight returns the Hamming weight of v.
func (v Vector) Weight() int {
	return bits.OnesCount64(uint64(v))
}

// Bit reports whether coordinate i of v is set.
func (v Vector) Bit(i int) bool {
	return v>>uint(i)&1 == 1
}

// Support returns the set coordinates of v in ascending order.
func (v Vector) Support() []int {
	out := make([]int, 0, v.Weight())
	for w := uint64(v); w != 0; w &= w - 1 {
		out = append(out, bits.TrailingZeros64(w))
	}
	return out
}

// FromSupport builds the vector with exactly the given coordinates set.
func FromSupport(coords ...int) Vector {
	var v Vector
	for _, c := range coords {
		v |= 1 << uint(c)
	}
	return v
}

// Mask returns the vector with the low n coordinates set.
func Mask(n int) Vector {
	if n >= MaxDim {
		return ^Vector(0)
	}
	return Vector(1)<<uint(n) - 1
}

// Format renders v as a bit string of length n, coordinate 0 first.
func (v Vector) Format(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		if v.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (v Vector) String() string {
	return fmt.Sprintf("0x%x", uint64(v))
}
