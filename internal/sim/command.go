package sim

import (
	"time"

	"sharedspace/server/internal/world"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandTurn CommandType = "Turn"
)

// TurnCommand carries the requested heading.
type TurnCommand struct {
	Heading world.Point `json:"heading"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ActorID  string       `json:"actorId"`
	Type     CommandType  `json:"type"`
	IssuedAt time.Time    `json:"issuedAt"`
	Turn     *TurnCommand `json:"turn,omitempty"`
}
