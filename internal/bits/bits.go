// Package bits provides low-level integer helpers shared by the mappers and
// the parallel backends.
package bits

import "math/bits"

// FastRange32 maps a 64-bit hash uniformly to [0, n) returning uint32.
// Multiply and keep the high word; no modulo bias and no division.
func FastRange32(hash uint64, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, uint64(n))
	return uint32(hi)
}

// RoundUp rounds n up to the next multiple of m. m must be positive.
func RoundUp(n, m int) int {
	return (n + m - 1) / m * m
}
