// Package random provides seed and source helpers for the team draw.
//
// Seeds come from crypto/rand so consecutive process starts never repeat a
// draw order, while a fixed seed keeps a session reproducible.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a math/rand source for seed. A zero seed is replaced by
// NewSeed; the seed actually used is returned so callers can log it.
func NewRand(seed int64) (*rand.Rand, int64, error) {
	if seed == 0 {
		generated, err := NewSeed()
		if err != nil {
			return nil, 0, err
		}
		seed = generated
	}
	return rand.New(rand.NewSource(seed)), seed, nil
}
