// Package human generates humanized input: jittered delays, Bézier mouse
// paths, variable-cadence typing with corrected typos, and chunked
// scrolling. Generators only produce action lists; the browser layer
// dispatches them as trusted CDP events.
package human

import (
	"context"
	"math/rand"
	"time"

	"linkedin-scout/internal/core"
)

// Humanizer coordinates the input generators behind one configuration.
type Humanizer struct {
	cfg    core.HumanConfig
	delays *Delays
	cursor *Cursor
	typist *Typist
	wheel  *Wheel
}

// New creates a Humanizer seeded from the clock.
func New(cfg core.HumanConfig) *Humanizer {
	return NewWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand creates a Humanizer with an explicit source, for
// deterministic tests. The source is shared across generators and must not
// be used from more than one goroutine at a time.
func NewWithRand(cfg core.HumanConfig, rng *rand.Rand) *Humanizer {
	return &Humanizer{
		cfg:    cfg,
		delays: NewDelays(rng),
		cursor: NewCursor(cfg.MouseSpeedMin, cfg.MouseSpeedMax, cfg.OvershootChance, rng),
		typist: NewTypist(rng),
		wheel:  NewWheel(rng),
	}
}

// Sleep pauses for a jittered duration between min and max seconds.
func (h *Humanizer) Sleep(ctx context.Context, minSeconds, maxSeconds float64) {
	h.delays.SleepRange(ctx, minSeconds, maxSeconds)
}

// SettleDelay pauses for the configured base think-time window.
func (h *Humanizer) SettleDelay(ctx context.Context) {
	h.delays.SleepRange(ctx, h.cfg.BaseDelayMin, h.cfg.BaseDelayMax)
}

// TypingActions returns the keystroke sequence for text, typos included.
func (h *Humanizer) TypingActions(ctx context.Context, text string) ([]KeyAction, error) {
	return h.typist.Actions(ctx, text, h.cfg.TypingSpeedMin, h.cfg.TypingSpeedMax, h.cfg.TypoProbability)
}

// ScrollActions returns eased scroll chunks covering distance.
func (h *Humanizer) ScrollActions(ctx context.Context, direction string, distance int) ([]ScrollAction, error) {
	return h.wheel.Actions(ctx, direction, distance, h.cfg.ScrollChunkMin, h.cfg.ScrollChunkMax)
}

// CursorPath returns the mouse path from start to end, possibly with an
// overshoot-and-correct tail.
func (h *Humanizer) CursorPath(startX, startY, endX, endY float64) []Point {
	return h.cursor.Path(startX, startY, endX, endY)
}

// Viewport picks a realistic desktop viewport within the configured bounds.
func (h *Humanizer) Viewport() (width, height int) {
	width = h.delays.RandomInt(h.cfg.ViewportWidthMin, h.cfg.ViewportWidthMax)
	height = h.delays.RandomInt(h.cfg.ViewportHeightMin, h.cfg.ViewportHeightMax)
	return width, height
}
