package world

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// DeterministicSeedValue derives a stable seed for label from rootSeed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewRNG returns a generator seeded from rootSeed and label, or from the
// wall clock when rootSeed is empty.
func NewRNG(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// RandomPoint picks a point inside the arena keeping margin away from each edge.
func RandomPoint(rng *rand.Rand, arena Arena, margin float64) Point {
	return Point{
		X: randomRange(rng, margin, arena.Width-margin),
		Y: randomRange(rng, margin, arena.Height-margin),
	}
}

func randomRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return (min + max) / 2
	}
	return min + rng.Float64()*(max-min)
}
