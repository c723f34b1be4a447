package sim

const (
	DefaultStep          = 7.0
	DefaultSelfRadius    = 10.0
	DefaultFoodRadius    = 12.0
	DefaultFoodBonus     = 5
	DefaultInitialLength = 15
	DefaultMaxLength     = 2000
)

// Rules are the fixed movement and collision constants.
type Rules struct {
	Step          float64
	SelfRadius    float64
	FoodRadius    float64
	FoodBonus     int
	InitialLength int
	// MaxLength bounds lengths reported by clients.
	MaxLength int
}

func DefaultRules() Rules {
	return Rules{
		Step:          DefaultStep,
		SelfRadius:    DefaultSelfRadius,
		FoodRadius:    DefaultFoodRadius,
		FoodBonus:     DefaultFoodBonus,
		InitialLength: DefaultInitialLength,
		MaxLength:     DefaultMaxLength,
	}
}

func (r Rules) Normalized() Rules {
	normalized := r
	if normalized.Step <= 0 {
		normalized.Step = DefaultStep
	}
	if normalized.SelfRadius <= 0 {
		normalized.SelfRadius = DefaultSelfRadius
	}
	if normalized.FoodRadius <= 0 {
		normalized.FoodRadius = DefaultFoodRadius
	}
	if normalized.FoodBonus < 0 {
		normalized.FoodBonus = 0
	}
	if normalized.InitialLength <= 0 {
		normalized.InitialLength = DefaultInitialLength
	}
	if normalized.MaxLength < normalized.InitialLength {
		normalized.MaxLength = DefaultMaxLength
		if normalized.MaxLength < normalized.InitialLength {
			normalized.MaxLength = normalized.InitialLength
		}
	}
	return normalized
}
