// Package rand provides the cryptographic random primitives and
// human-distributed timing generators the rest of the orchestrator uses to
// avoid mechanical, bot-shaped timing. Every primitive here is built on
// crypto/rand, never math/rand, which is detectable as a non-human timing
// source.
package rand

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/ohmynofan/rewards-orchestrator/pkg/utils"
)

// UniformFloat returns a uniform float64 in [0, 1).
func UniformFloat() float64 {
	const mantissaBits = 53
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), mantissaBits))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / float64(int64(1)<<mantissaBits)
}

// IntIn returns a uniform integer in [a, b] inclusive. If b<a, a is returned.
func IntIn(a, b int) int {
	if b < a {
		return a
	}
	span := int64(b-a) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return a
	}
	return a + int(n.Int64())
}

// FloatIn returns a uniform float64 in [a, b).
func FloatIn(a, b float64) float64 {
	if b <= a {
		return a
	}
	return a + UniformFloat()*(b-a)
}

// Bool returns true with probability p (clamped to [0,1]).
func Bool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return UniformFloat() < p
}

// Pick returns a uniformly random element of items. Panics if items is
// empty; an empty pool is a programmer error, not a runtime condition to
// recover from.
func Pick[T any](items []T) T {
	return items[IntIn(0, len(items)-1)]
}

// Shuffle randomises the order of items in place (Fisher-Yates).
func Shuffle[T any](items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := IntIn(0, i)
		items[i], items[j] = items[j], items[i]
	}
}

// Gaussian draws from a normal distribution via Box-Muller, using crypto/rand
// for both uniform draws underneath UniformFloat.
func Gaussian(mean, stddev float64) float64 {
	u1 := UniformFloat()
	if u1 <= 0 {
		u1 = 1e-12
	}
	u2 := UniformFloat()
	z0 := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z0*stddev
}

// GaussianPositive is Gaussian clamped to be >= 0.
func GaussianPositive(mean, stddev float64) float64 {
	v := Gaussian(mean, stddev)
	if v < 0 {
		return 0
	}
	return v
}

// Token returns a short opaque identifier with at least 32 bits of entropy,
// drawn directly from crypto/rand rather than stringifying a float, which
// would bias toward a low-entropy, prefix-heavy result.
func Token() string {
	hexStr, err := utils.GenerateRandomHex(8)
	if err != nil {
		return "00000000"
	}
	return hexStr
}
