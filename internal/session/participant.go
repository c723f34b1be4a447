package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Color is an RGB display color, encoded on the wire as "#RRGGBB".
type Color struct {
	R uint8
	G uint8
	B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseColor(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor accepts "#RRGGBB" (the leading # is optional).
func ParseColor(raw string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", raw)
	}
	var c Color
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", raw, err)
	}
	return c, nil
}

func mustColor(raw string) Color {
	c, err := ParseColor(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultPalette is cycled through in join order.
var DefaultPalette = []Color{
	mustColor("#F9A8D4"),
	mustColor("#A7F3D0"),
	mustColor("#FDE68A"),
	mustColor("#BFDBFE"),
	mustColor("#FBCFE8"),
	mustColor("#D9F99D"),
}

// Participant is the public profile of a connected user. ID and Color are
// fixed at admission; Name changes through Rename.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}
