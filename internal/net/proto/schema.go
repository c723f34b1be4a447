package proto

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"sharedspace/server/internal/session"
)

// Schema describes every message of the wire protocol.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		Mapper:                     mapType,
	}

	definitions := jsonschema.Definitions{}

	inbound := reflector.Reflect(new(ClientMessage))
	inbound.Version = ""
	inbound.Title = "Client message"
	definitions["client"] = inbound

	for _, msg := range OutboundSamples() {
		schema := reflector.Reflect(msg)
		schema.Version = ""
		schema.Title = msg.MessageType()
		if schema.Properties != nil {
			schema.Properties.Set("type", &jsonschema.Schema{Type: "string", Const: msg.MessageType()})
		}
		schema.Required = append(schema.Required, "type")
		definitions[msg.MessageType()] = schema
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Shared space wire protocol",
		Description: "JSON frames exchanged over the /ws endpoint.",
		Definitions: definitions,
	}
}

var (
	colorType = reflect.TypeOf(session.Color{})
	rawType   = reflect.TypeOf(json.RawMessage{})
)

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case colorType:
		return &jsonschema.Schema{Type: "string", Pattern: "^#[0-9A-Fa-f]{6}$"}
	case rawType:
		return &jsonschema.Schema{Description: "opaque payload"}
	default:
		return nil
	}
}
