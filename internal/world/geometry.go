package world

import "math"

// Point is a position or direction in arena coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d scaled by step.
func (p Point) Add(d Point, step float64) Point {
	return Point{X: p.X + d.X*step, Y: p.Y + d.Y*step}
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Wrap folds value into [0, size). Exiting below zero re-enters from the
// high edge and vice versa.
func Wrap(value, size float64) float64 {
	if size <= 0 {
		return value
	}
	wrapped := math.Mod(value, size)
	if wrapped < 0 {
		wrapped += size
	}
	if wrapped >= size {
		wrapped = 0
	}
	return wrapped
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Arena describes the toroidal play field.
type Arena struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Wrap folds p into the arena on each axis independently.
func (a Arena) Wrap(p Point) Point {
	return Point{X: Wrap(p.X, a.Width), Y: Wrap(p.Y, a.Height)}
}

// Center returns the midpoint of the arena.
func (a Arena) Center() Point {
	return Point{X: a.Width / 2, Y: a.Height / 2}
}
