package convvae

import (
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseSource draws from the standard normal distribution N(0, 1). It must
// be safe for concurrent use.
type NoiseSource func() float64

// DefaultNoise draws from the process-wide random source.
func DefaultNoise() NoiseSource {
	return distuv.UnitNormal.Rand
}

// SeededNoise returns a reproducible source.
func SeededNoise(seed uint64) NoiseSource {
	var mu sync.Mutex
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return n.Rand()
	}
}

// ZeroNoise makes reparametrisation return the mean.
func ZeroNoise() float64 {
	return 0
}
