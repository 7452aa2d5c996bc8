package dedupe

import "hash/fnv"

// hashBits is the fingerprint width.
const hashBits = 64

// Fingerprint reduces a shingle sequence to a 64-bit SimHash.
//
// Every shingle is hashed with FNV-1a and votes +1/-1 on each bit
// position; bit i of the result is set iff the accumulated vote is
// strictly positive (a tie leaves the bit at zero). Texts sharing most
// of their shingles land on fingerprints with a small Hamming distance,
// and heavily overlapping texts collide exactly.
//
// Stored fingerprints are only comparable to fingerprints produced by
// this exact construction, so the hash function and the vote rule must
// never change.
func Fingerprint(shingles []string) uint64 {
	var votes [hashBits]int

	for _, s := range shingles {
		h := hashShingle(s)
		for i := 0; i < hashBits; i++ {
			if (h>>uint(i))&1 == 1 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < hashBits; i++ {
		if votes[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// hashShingle hashes a single shingle with FNV-1a 64.
func hashShingle(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// HammingDistance counts the differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}
