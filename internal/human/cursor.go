package human

import (
	"math"
	"math/rand"
)

// Point is a 2D page coordinate.
type Point struct {
	X, Y float64
}

// Cursor generates mouse paths along cubic Bézier curves, with an
// occasional overshoot past the target followed by a correction.
type Cursor struct {
	speedMin        float64
	speedMax        float64
	overshootChance float64
	rng             *rand.Rand
}

// NewCursor creates a Cursor generator.
func NewCursor(speedMin, speedMax, overshootChance float64, rng *rand.Rand) *Cursor {
	if speedMin <= 0 {
		speedMin = 0.5
	}
	if speedMax < speedMin {
		speedMax = speedMin
	}
	return &Cursor{
		speedMin:        speedMin,
		speedMax:        speedMax,
		overshootChance: overshootChance,
		rng:             rng,
	}
}

// Path returns the points to traverse from start to end. Step count scales
// inversely with the sampled speed multiplier; short hops collapse to a
// single point.
func (c *Cursor) Path(startX, startY, endX, endY float64) []Point {
	distance := math.Hypot(endX-startX, endY-startY)
	if distance < 1.0 {
		return []Point{{X: endX, Y: endY}}
	}

	target := Point{X: endX, Y: endY}
	aim := target
	overshot := c.rng.Float64() < c.overshootChance
	if overshot {
		// Aim 10-30% of the travel distance past the target, then correct.
		over := distance * (0.1 + c.rng.Float64()*0.2)
		angle := math.Atan2(endY-startY, endX-startX)
		aim = Point{
			X: endX + over*math.Cos(angle),
			Y: endY + over*math.Sin(angle),
		}
	}

	speed := c.speedMin + c.rng.Float64()*(c.speedMax-c.speedMin)
	steps := int(distance / (10.0 * speed))
	if steps < 10 {
		steps = 10
	}
	if steps > 100 {
		steps = 100
	}

	points := c.bezier(c.controls(Point{X: startX, Y: startY}, aim), steps)

	if overshot {
		correctionSteps := int(distance * 0.2)
		if correctionSteps < 5 {
			correctionSteps = 5
		}
		points = append(points, c.bezier(c.controls(aim, target), correctionSteps)...)
	}

	return points
}

// controls builds the four control points of a cubic curve; the two inner
// points are offset perpendicular to the travel direction so the path bows
// instead of running straight.
func (c *Cursor) controls(start, end Point) [4]Point {
	dx := end.X - start.X
	dy := end.Y - start.Y
	perpX := -dy
	perpY := dx

	perpLen := math.Hypot(perpX, perpY)
	if perpLen > 0 {
		scale := (c.rng.Float64()*0.3 + 0.2) * math.Hypot(dx, dy) // 20-50% of distance
		perpX = perpX / perpLen * scale
		perpY = perpY / perpLen * scale
	}

	return [4]Point{
		start,
		{X: start.X + perpX*(0.3+c.rng.Float64()*0.4), Y: start.Y + perpY*(0.3+c.rng.Float64()*0.4)},
		{X: end.X - perpX*(0.3+c.rng.Float64()*0.4), Y: end.Y - perpY*(0.3+c.rng.Float64()*0.4)},
		end,
	}
}

// bezier samples the cubic curve at steps evenly spaced parameter values.
func (c *Cursor) bezier(ctrl [4]Point, steps int) []Point {
	if steps < 2 {
		steps = 2
	}
	points := make([]Point, steps)
	p0, p1, p2, p3 := ctrl[0], ctrl[1], ctrl[2], ctrl[3]

	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)

		// B(t) = (1-t)³P₀ + 3(1-t)²tP₁ + 3(1-t)t²P₂ + t³P₃
		mt := 1 - t
		mt2 := mt * mt
		mt3 := mt2 * mt
		t2 := t * t
		t3 := t2 * t

		points[i] = Point{
			X: mt3*p0.X + 3*mt2*t*p1.X + 3*mt*t2*p2.X + t3*p3.X,
			Y: mt3*p0.Y + 3*mt2*t*p1.Y + 3*mt*t2*p2.Y + t3*p3.Y,
		}
	}

	return points
}
