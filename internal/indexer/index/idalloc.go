package index

import (
	"math/rand/v2"
)

// DefaultMaxIDProbes is how many consecutive ids NextID tries above the
// timestamp seed before switching to random allocation.
const DefaultMaxIDProbes = 1024

// randomID is swapped out in tests.
var randomID = rand.Uint64

// NextID returns an id not used by any stored document. The candidate starts
// at nowMillis and probes upward; after maxIDProbes collisions it draws random
// ids until one is free. Zero is never returned.
func (ix *Index) NextID(nowMillis uint64) uint64 {
	id := nowMillis
	for i := 0; i < ix.maxIDProbes; i++ {
		if id != 0 && !ix.Has(id) {
			return id
		}
		if id == ^uint64(0) {
			break
		}
		id++
	}
	for {
		id = randomID()
		if id != 0 && !ix.Has(id) {
			return id
		}
	}
}
