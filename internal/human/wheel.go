package human

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ScrollAction is one wheel movement; a zero Distance is a read pause.
type ScrollAction struct {
	Distance int // pixels; negative scrolls up
	Delay    time.Duration
}

// Wheel generates chunked scrolling with acceleration at the start,
// deceleration at the end, and pauses between chunks.
type Wheel struct {
	rng *rand.Rand
}

// NewWheel creates a Wheel generator on the given source.
func NewWheel(rng *rand.Rand) *Wheel {
	return &Wheel{rng: rng}
}

// Actions covers distance in eased chunks sized between chunkMin and
// chunkMax, ending with a reading pause. Direction "up" or "backward"
// scrolls negative.
func (w *Wheel) Actions(ctx context.Context, direction string, distance int, chunkMin, chunkMax int) ([]ScrollAction, error) {
	if distance < 0 {
		distance = -distance
	}
	if chunkMin < 1 {
		chunkMin = 1
	}
	if chunkMax < chunkMin {
		chunkMax = chunkMin
	}

	multiplier := 1
	if direction == "up" || direction == "backward" {
		multiplier = -1
	}

	avgChunk := (chunkMin + chunkMax) / 2
	numChunks := int(math.Ceil(float64(distance) / float64(avgChunk)))
	if numChunks < 1 {
		numChunks = 1
	}

	actions := make([]ScrollAction, 0, numChunks+1)
	remaining := distance

	for i := 0; i < numChunks && remaining > 0; i++ {
		select {
		case <-ctx.Done():
			return actions, ctx.Err()
		default:
		}

		t := 0.5
		if numChunks > 1 {
			t = float64(i) / float64(numChunks-1)
		}

		// Ease in and out: small chunks at the edges, large in the middle.
		size := float64(chunkMin) + easeInOutCubic(t)*float64(chunkMax-chunkMin)
		size *= 0.7 + w.rng.Float64()*0.6 // ±30% variation
		chunk := int(size)
		if chunk > remaining {
			chunk = remaining
		}
		if chunk < 1 {
			chunk = 1
		}

		// First and last chunks get longer pauses (orienting/reading);
		// middle chunks move quickly.
		delay := 50.0 + float64(chunk)*0.5
		if i == 0 || i == numChunks-1 {
			delay *= 1.5 + w.rng.Float64()*0.5
		} else {
			delay *= 0.7 + w.rng.Float64()*0.3
		}
		delay += w.rng.Float64() * 20.0

		actions = append(actions, ScrollAction{
			Distance: chunk * multiplier,
			Delay:    time.Duration(delay) * time.Millisecond,
		})

		remaining -= chunk
	}

	if len(actions) > 0 {
		actions = append(actions, ScrollAction{
			Distance: 0,
			Delay:    time.Duration(200+w.rng.Intn(300)) * time.Millisecond,
		})
	}

	return actions, nil
}

// easeInOutCubic maps t in [0,1] onto a slow-fast-slow curve.
func easeInOutCubic(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
