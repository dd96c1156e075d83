package human

import (
	"context"
	"math/rand"
	"time"
)

// KeyAction is one step of a typing sequence.
type KeyAction struct {
	Kind  ActionKind
	Key   string        // key to press, for ActionKey; "\b" is backspace
	Delay time.Duration // delay after this action
}

// ActionKind distinguishes keystrokes from bare pauses.
type ActionKind int

const (
	ActionKey ActionKind = iota
	ActionPause
)

// qwertyNeighbors maps each key to the keys physically adjacent on a QWERTY
// layout, used to pick plausible typos.
var qwertyNeighbors = map[rune][]rune{
	'a': {'s', 'q', 'w', 'z', 'x'},
	'b': {'v', 'g', 'h', 'n'},
	'c': {'x', 'd', 'f', 'v'},
	'd': {'s', 'e', 'r', 'f', 'c', 'x'},
	'e': {'w', 'r', 'd', 's'},
	'f': {'d', 'r', 't', 'g', 'v', 'c'},
	'g': {'f', 't', 'y', 'h', 'b', 'v'},
	'h': {'g', 'y', 'u', 'j', 'n', 'b'},
	'i': {'u', 'o', 'k', 'j'},
	'j': {'h', 'u', 'i', 'k', 'm', 'n'},
	'k': {'j', 'i', 'o', 'l', ',', 'm'},
	'l': {'k', 'o', 'p', ';', '.', ','},
	'm': {'n', 'j', 'k', ','},
	'n': {'b', 'h', 'j', 'm'},
	'o': {'i', 'p', 'l', 'k'},
	'p': {'o', '[', ']', 'l', ';'},
	'q': {'w', 'a'},
	'r': {'e', 't', 'f', 'd'},
	's': {'a', 'w', 'e', 'd', 'x', 'z'},
	't': {'r', 'y', 'g', 'f'},
	'u': {'y', 'i', 'j', 'h'},
	'v': {'c', 'f', 'g', 'b'},
	'w': {'q', 'e', 's', 'a'},
	'x': {'z', 's', 'd', 'c'},
	'y': {'t', 'u', 'h', 'g'},
	'z': {'a', 's', 'x'},
}

// Typist generates keystroke sequences with variable cadence and the
// occasional noticed-and-corrected typo.
type Typist struct {
	rng *rand.Rand
}

// NewTypist creates a Typist on the given source.
func NewTypist(rng *rand.Rand) *Typist {
	return &Typist{rng: rng}
}

// Actions produces the keystrokes for text:
//   - cadence sampled once from [wpmMin, wpmMax]
//   - per-character delay varies by key class
//   - with probability typoProb a neighboring key is hit first, noticed
//     after a short pause, backspaced, and corrected
func (t *Typist) Actions(ctx context.Context, text string, wpmMin, wpmMax int, typoProb float64) ([]KeyAction, error) {
	if wpmMin < 1 {
		wpmMin = 1
	}
	if wpmMax < wpmMin {
		wpmMax = wpmMin
	}
	if typoProb < 0 {
		typoProb = 0
	}
	if typoProb > 1 {
		typoProb = 1
	}

	runes := []rune(text)
	actions := make([]KeyAction, 0, len(runes))

	// Average word is ~6 keystrokes, so seconds per character is
	// (60 / WPM) / 6.
	wpm := wpmMin + t.rng.Intn(wpmMax-wpmMin+1)
	perChar := (60.0 / float64(wpm)) / 6.0

	for i, ch := range runes {
		select {
		case <-ctx.Done():
			return actions, ctx.Err()
		default:
		}

		if t.rng.Float64() < typoProb && i < len(runes)-1 {
			wrong := t.typo(ch)
			actions = append(actions,
				KeyAction{Kind: ActionKey, Key: string(wrong), Delay: t.keyDelay(perChar, ch)},
				// humans notice typos quickly
				KeyAction{Kind: ActionPause, Delay: time.Duration(100+t.rng.Intn(200)) * time.Millisecond},
				KeyAction{Kind: ActionKey, Key: "\b", Delay: t.keyDelay(perChar, '\b')},
				KeyAction{Kind: ActionKey, Key: string(ch), Delay: t.keyDelay(perChar, ch)},
			)
			continue
		}

		actions = append(actions, KeyAction{Kind: ActionKey, Key: string(ch), Delay: t.keyDelay(perChar, ch)})
	}

	return actions, nil
}

// typo returns a plausible mistyped key for ch, preserving case.
func (t *Typist) typo(ch rune) rune {
	lower := ch
	if ch >= 'A' && ch <= 'Z' {
		lower = ch + 32
	}

	if nearby, ok := qwertyNeighbors[lower]; ok && len(nearby) > 0 {
		wrong := nearby[t.rng.Intn(len(nearby))]
		// Shift stays held through the mistake, but only letters have an
		// uppercase form worth restoring.
		if ch >= 'A' && ch <= 'Z' && wrong >= 'a' && wrong <= 'z' {
			wrong -= 32
		}
		return wrong
	}

	if ch == ' ' {
		return 'x'
	}
	if ch >= '1' && ch <= '9' {
		return ch - 1
	}
	if ch == '0' {
		return '9'
	}

	// No sensible neighbor; type it correctly.
	return ch
}

// keyDelay varies the base cadence by key class: word boundaries and
// punctuation take longer, backspace is quick.
func (t *Typist) keyDelay(base float64, ch rune) time.Duration {
	delay := base * (0.8 + t.rng.Float64()*0.4)

	switch ch {
	case ' ', '\n', '\t':
		delay *= 1.5 + t.rng.Float64()*0.5
	case '.', ',', '!', '?':
		delay *= 1.2 + t.rng.Float64()*0.3
	case '\b':
		delay *= 0.7 + t.rng.Float64()*0.2
	}

	delay += t.rng.Float64() * 0.01 // never exact-integer milliseconds

	return time.Duration(delay * float64(time.Second))
}
