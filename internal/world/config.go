package world

const (
	DefaultWidth       = 800.0
	DefaultHeight      = 600.0
	DefaultMaxFood     = 2
	DefaultInitialFood = 1
	DefaultSpawnMargin = 20.0
	// DefaultInitialLength is the trail length a participant spawns and
	// resets with.
	DefaultInitialLength = 15
)

// Config sizes the arena and the food collection.
type Config struct {
	Arena         Arena   `json:"arena"`
	MaxFood       int     `json:"maxFood"`
	InitialFood   int     `json:"initialFood"`
	InitialLength int     `json:"initialLength"`
	SpawnMargin   float64 `json:"spawnMargin"`
	Seed          string  `json:"seed"`
}

// DefaultConfig returns an 800x600 arena holding at most two food items.
func DefaultConfig() Config {
	return Config{
		Arena:         Arena{Width: DefaultWidth, Height: DefaultHeight},
		MaxFood:       DefaultMaxFood,
		InitialFood:   DefaultInitialFood,
		InitialLength: DefaultInitialLength,
		SpawnMargin:   DefaultSpawnMargin,
	}
}

// Normalized fills unset fields with defaults and keeps the food counts and
// spawn margin inside their valid ranges.
func (cfg Config) Normalized() Config {
	normalized := cfg
	if normalized.Arena.Width <= 0 {
		normalized.Arena.Width = DefaultWidth
	}
	if normalized.Arena.Height <= 0 {
		normalized.Arena.Height = DefaultHeight
	}
	if normalized.MaxFood < 0 {
		normalized.MaxFood = 0
	}
	if normalized.InitialFood < 0 {
		normalized.InitialFood = 0
	}
	if normalized.InitialFood > normalized.MaxFood {
		normalized.InitialFood = normalized.MaxFood
	}
	if normalized.InitialLength <= 0 {
		normalized.InitialLength = DefaultInitialLength
	}
	limit := min(normalized.Arena.Width, normalized.Arena.Height) / 2
	normalized.SpawnMargin = Clamp(normalized.SpawnMargin, 0, limit)
	return normalized
}
