package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

// ErrMissingType reports an inbound frame without a type field.
var ErrMissingType = errors.New("proto: message type missing")

// Decode parses one inbound frame.
func Decode(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, ErrMissingType
	}
	return msg, nil
}

// PeekType reads the type field without decoding the rest of the frame.
func PeekType(data []byte) string {
	value, err := jsonparser.GetString(data, "type")
	if err != nil {
		return ""
	}
	return value
}

// IsClientType reports whether messageType is a type clients may send.
func IsClientType(messageType string) bool {
	switch messageType {
	case TypeJoin, TypeMove, TypeMoveUpdate, TypeFoodEaten, TypeLeave, TypeSignal, TypeRename, TypeDraw:
		return true
	}
	return false
}

// Encode renders msg as a JSON object with its type field set.
func Encode(msg Outbound) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("encode message: nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	stamped, err := jsonparser.Set(body, []byte(strconv.Quote(msg.MessageType())), "type")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return stamped, nil
}
