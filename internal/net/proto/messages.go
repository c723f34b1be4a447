package proto

import (
	"encoding/json"

	"sharedspace/server/internal/session"
	"sharedspace/server/internal/world"
)

// Client message type identifiers.
const (
	TypeJoin       = "join"
	TypeMove       = "player-move"
	TypeMoveUpdate = "move-update"
	TypeFoodEaten  = "food-eaten"
	TypeLeave      = "leave"
	TypeSignal     = "signal"
	TypeRename     = "rename"
	TypeDraw       = "draw"
)

// Server message type identifiers.
const (
	TypeInitialState = "initial-state"
	TypeUserJoined   = "user-joined"
	TypePlayerMove   = "player-move"
	TypeFoodUpdate   = "food-update"
	TypeUserLeft     = "user-left"
	TypeUserUpdated  = "user-updated"
	TypeDrawingData  = "drawing-data"
	TypeError        = "error"
	TypeRoomFull     = "room-full"
)

// Error codes carried by Error.Code.
const (
	CodeMalformed     = "malformed"
	CodeNotJoined     = "not_joined"
	CodeAlreadyJoined = "already_joined"
	CodeInvalidName   = "invalid_name"
	CodeRateLimited   = "rate_limited"
)

// PlayerState is the wire form of a movement state.
type PlayerState = world.MovementState

// Player is the wire form of a participant profile.
type Player = session.Participant

// ClientMessage captures an inbound websocket message from the client. Only
// the fields relevant to Type are populated.
type ClientMessage struct {
	Type      string          `json:"type" jsonschema:"required"`
	UserID    string          `json:"userId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Color     string          `json:"color,omitempty"`
	State     *PlayerState    `json:"state,omitempty"`
	Direction *world.Point    `json:"direction,omitempty"`
	FoodIndex *int            `json:"foodIndex,omitempty"`
	FoodID    string          `json:"foodId,omitempty"`
	TargetID  string          `json:"targetId,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Start     *world.Point    `json:"start,omitempty"`
	End       *world.Point    `json:"end,omitempty"`
}

// Heading returns the requested heading of a move message.
func (m ClientMessage) Heading() (world.Point, bool) {
	if m.Direction != nil {
		return *m.Direction, true
	}
	if m.State != nil {
		return m.State.Direction, true
	}
	return world.Point{}, false
}

// Outbound is implemented by every server message.
type Outbound interface {
	MessageType() string
}

// Food is the wire form of a food item.
type Food struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// FoodFromItems converts the store's collection, keeping its order.
func FoodFromItems(items []world.FoodItem) []Food {
	food := make([]Food, 0, len(items))
	for _, item := range items {
		food = append(food, Food{ID: string(item.ID), X: item.Position.X, Y: item.Position.Y})
	}
	return food
}

type InitialState struct {
	SelfID   string                 `json:"selfId"`
	Users    []Player               `json:"users"`
	Players  map[string]PlayerState `json:"players"`
	Food     []Food                 `json:"food"`
	Arena    world.Arena            `json:"arena"`
	Capacity int                    `json:"capacity"`
}

func (InitialState) MessageType() string { return TypeInitialState }

type UserJoined struct {
	Player Player       `json:"player"`
	State  *PlayerState `json:"state,omitempty"`
}

func (UserJoined) MessageType() string { return TypeUserJoined }

type PlayerMove struct {
	UserID string      `json:"userId"`
	State  PlayerState `json:"state"`
	Reset  bool        `json:"reset,omitempty"`
}

func (PlayerMove) MessageType() string { return TypePlayerMove }

type FoodUpdate struct {
	Food []Food `json:"food"`
}

func (FoodUpdate) MessageType() string { return TypeFoodUpdate }

type UserLeft struct {
	UserID string `json:"userId"`
}

func (UserLeft) MessageType() string { return TypeUserLeft }

type UserUpdated struct {
	Player Player `json:"player"`
}

func (UserUpdated) MessageType() string { return TypeUserUpdated }

// Signal delivers an opaque negotiation payload. Payload is forwarded
// byte for byte.
type Signal struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"signal"`
}

func (Signal) MessageType() string { return TypeSignal }

type DrawingData struct {
	UserID string        `json:"userId"`
	Color  session.Color `json:"color"`
	Start  world.Point   `json:"start"`
	End    world.Point   `json:"end"`
}

func (DrawingData) MessageType() string { return TypeDrawingData }

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (Error) MessageType() string { return TypeError }

type RoomFull struct {
	Capacity int `json:"capacity"`
}

func (RoomFull) MessageType() string { return TypeRoomFull }

// OutboundSamples lists one zero value per server message type.
func OutboundSamples() []Outbound {
	return []Outbound{
		InitialState{},
		UserJoined{},
		PlayerMove{},
		FoodUpdate{},
		UserLeft{},
		UserUpdated{},
		Signal{},
		DrawingData{},
		Error{},
		RoomFull{},
	}
}
