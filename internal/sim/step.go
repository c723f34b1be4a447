package sim

import (
	"errors"
	"math"

	"sharedspace/server/internal/world"
)

// ErrInvalidHeading rejects headings that are not a unit axis vector
// perpendicular to the current one.
var ErrInvalidHeading = errors.New("sim: invalid heading")

// Phase is the per-tick state of a participant. Resetting only lasts for
// the tick that produced it.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseResetting
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// ResetCause names the collision behind a reset.
type ResetCause string

const (
	CauseNone      ResetCause = ""
	CauseSelf      ResetCause = "self"
	CauseCollision ResetCause = "collision"
)

// Outcome is the result of one Step.
type Outcome struct {
	Phase Phase
	State world.MovementState
	Cause ResetCause
	// CollidedWith is the owner of the trail hit on an inter-player reset.
	CollidedWith string
	Eaten        []world.FoodItem
	Bonus        int
}

// ConsumeFunc claims a food item. It reports false when another consumer
// already took it.
type ConsumeFunc func(item world.FoodItem) bool

// Step advances state by one move. others maps participant ids to their
// trails, most recent first. consume is only called when the tick does not
// end in a reset.
func Step(rules Rules, arena world.Arena, state world.MovementState, others map[string][]world.Point, food []world.FoodItem, consume ConsumeFunc) Outcome {
	candidate := arena.Wrap(state.Position.Add(state.Direction, rules.Step))

	if hitsTrail(candidate, state.Trail, rules.SelfRadius) {
		return resetOutcome(rules, arena, state, CauseSelf, "")
	}

	var hits []world.FoodItem
	for _, item := range food {
		if world.Distance(candidate, item.Position) < rules.FoodRadius {
			hits = append(hits, item)
		}
	}

	for _, id := range sortedKeys(others) {
		if hitsTrail(candidate, others[id], rules.SelfRadius) {
			return resetOutcome(rules, arena, state, CauseCollision, id)
		}
	}

	out := Outcome{Phase: PhaseActive}
	for _, item := range hits {
		if consume != nil && !consume(item) {
			continue
		}
		out.Eaten = append(out.Eaten, item)
		out.Bonus += rules.FoodBonus
	}

	next := state.Clone()
	next.Length = state.Length + out.Bonus
	next.Trail = append([]world.Point{state.Position}, state.Trail...)
	next.Position = candidate
	next.TrimTrail()
	out.State = next
	return out
}

// hitsTrail checks every trail point except the neck.
func hitsTrail(p world.Point, trail []world.Point, radius float64) bool {
	if len(trail) < 2 {
		return false
	}
	for _, point := range trail[1:] {
		if world.Distance(p, point) < radius {
			return true
		}
	}
	return false
}

func resetOutcome(rules Rules, arena world.Arena, state world.MovementState, cause ResetCause, other string) Outcome {
	reset := world.MovementState{
		Position:  arena.Center(),
		Direction: state.Direction,
		Trail:     []world.Point{},
		Length:    rules.InitialLength,
	}
	return Outcome{Phase: PhaseResetting, State: reset, Cause: cause, CollidedWith: other}
}

// ValidateHeading checks that next is a unit axis vector perpendicular to
// current. A zero current heading accepts any axis vector.
func ValidateHeading(current, next world.Point) error {
	if !isAxisUnit(next) {
		return ErrInvalidHeading
	}
	if current.X != 0 && next.X != 0 {
		return ErrInvalidHeading
	}
	if current.Y != 0 && next.Y != 0 {
		return ErrInvalidHeading
	}
	return nil
}

func isAxisUnit(p world.Point) bool {
	return (math.Abs(p.X) == 1 && p.Y == 0) || (p.X == 0 && math.Abs(p.Y) == 1)
}

// Sanitize repairs a client-reported state: the position is wrapped into
// the arena, the heading forced onto an axis, the length clamped and the
// trail trimmed.
func Sanitize(rules Rules, arena world.Arena, state world.MovementState) world.MovementState {
	clean := state.Clone()
	clean.Position = arena.Wrap(clean.Position)
	if !isAxisUnit(clean.Direction) {
		clean.Direction = world.DefaultHeading
	}
	if clean.Length < 0 {
		clean.Length = 0
	}
	if clean.Length > rules.MaxLength {
		clean.Length = rules.MaxLength
	}
	clean.TrimTrail()
	for i, point := range clean.Trail {
		clean.Trail[i] = arena.Wrap(point)
	}
	return clean
}
