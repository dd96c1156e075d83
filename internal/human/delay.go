package human

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delays implements randomized timing that never sleeps for exact integer
// durations - a tiny fractional jitter is always added.
type Delays struct {
	rng *rand.Rand
}

// NewDelays creates a Delays generator on the given source.
func NewDelays(rng *rand.Rand) *Delays {
	return &Delays{rng: rng}
}

// RandomSleep sleeps for baseSeconds plus a symmetric variance of up to
// ±varianceSeconds, cancellable through ctx.
func (d *Delays) RandomSleep(ctx context.Context, baseSeconds, varianceSeconds float64) {
	if baseSeconds < 0 {
		baseSeconds = 0
	}
	if varianceSeconds < 0 {
		varianceSeconds = 0
	}

	variance := (d.rng.Float64()*2 - 1) * varianceSeconds
	total := baseSeconds + variance
	if total < 0.001 {
		total = 0.001
	}
	total += d.rng.Float64() * 0.0001

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(total * float64(time.Second))):
	}
}

// SleepRange sleeps for a random duration between min and max seconds.
func (d *Delays) SleepRange(ctx context.Context, minSeconds, maxSeconds float64) {
	if minSeconds < 0 {
		minSeconds = 0
	}
	if maxSeconds < minSeconds {
		maxSeconds = minSeconds
	}

	total := minSeconds + d.rng.Float64()*(maxSeconds-minSeconds)
	total += d.rng.Float64() * 0.0001

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(total * float64(time.Second))):
	}
}

// GaussianSleep sleeps for a duration sampled from a normal distribution,
// for cadences where uniform noise looks mechanical.
func (d *Delays) GaussianSleep(ctx context.Context, meanSeconds, stdDevSeconds float64) {
	if meanSeconds < 0 {
		meanSeconds = 0
	}
	if stdDevSeconds < 0 {
		stdDevSeconds = 0
	}

	// Box-Muller transform
	u1 := d.rng.Float64()
	u2 := d.rng.Float64()
	z0 := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	total := meanSeconds + z0*stdDevSeconds
	if total < 0.001 {
		total = 0.001
	}
	total += d.rng.Float64() * 0.0001

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(total * float64(time.Second))):
	}
}

// RandomInt returns a random integer between min and max (inclusive).
func (d *Delays) RandomInt(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	return min + d.rng.Intn(max-min+1)
}

// RandomFloat returns a random float64 between min and max.
func (d *Delays) RandomFloat(min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	return min + d.rng.Float64()*(max-min)
}
