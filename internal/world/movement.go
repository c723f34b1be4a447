package world

// MovementState is a participant's simulated physical state. Trail is
// ordered most recent first and never longer than Length.
type MovementState struct {
	Position  Point   `json:"position"`
	Direction Point   `json:"direction"`
	Trail     []Point `json:"trail"`
	Length    int     `json:"length"`
}

// DefaultHeading is the heading every participant spawns with.
var DefaultHeading = Point{X: 1, Y: 0}

// NewMovementState builds the spawn state for a participant.
func NewMovementState(spawn Point, length int) MovementState {
	return MovementState{
		Position:  spawn,
		Direction: DefaultHeading,
		Trail:     []Point{},
		Length:    length,
	}
}

// Clone returns a copy that does not share the trail backing array.
func (m MovementState) Clone() MovementState {
	cloned := m
	cloned.Trail = make([]Point, len(m.Trail))
	copy(cloned.Trail, m.Trail)
	return cloned
}

// TrimTrail truncates the trail to Length entries.
func (m *MovementState) TrimTrail() {
	if m.Length < 0 {
		m.Length = 0
	}
	if len(m.Trail) > m.Length {
		m.Trail = m.Trail[:m.Length]
	}
}
