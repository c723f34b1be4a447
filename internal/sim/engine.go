package sim

import (
	"errors"
	"fmt"
	"sort"

	"sharedspace/server/internal/world"
)

// Engine applies Rules to the states held in a world.Store.
type Engine struct {
	store *world.Store
	rules Rules
}

// NewEngine binds rules to store.
func NewEngine(store *world.Store, rules Rules) *Engine {
	return &Engine{store: store, rules: rules.Normalized()}
}

func (e *Engine) Rules() Rules {
	return e.rules
}

func (e *Engine) Store() *world.Store {
	return e.store
}

// Turn changes id's heading.
func (e *Engine) Turn(id string, heading world.Point) (world.MovementState, error) {
	return e.store.UpdateMovement(id, func(state *world.MovementState) error {
		if err := ValidateHeading(state.Direction, heading); err != nil {
			return fmt.Errorf("turn %s: %w", id, err)
		}
		state.Direction = heading
		return nil
	})
}

// Advance runs one Step for id and persists the result. Food hits are
// claimed from the store while id's state is locked, so of two participants
// reaching the same item only one receives the bonus.
func (e *Engine) Advance(id string) (Outcome, error) {
	others := e.store.OtherTrails(id)
	food := e.store.Food()

	var out Outcome
	_, err := e.store.UpdateMovement(id, func(state *world.MovementState) error {
		out = Step(e.rules, e.store.Arena(), *state, others, food, func(item world.FoodItem) bool {
			_, err := e.store.ConsumeFood(item.ID)
			return err == nil
		})
		*state = out.State
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ApplyReported stores a client-reported state after sanitizing it.
func (e *Engine) ApplyReported(id string, state world.MovementState) (world.MovementState, error) {
	clean := Sanitize(e.rules, e.store.Arena(), state)
	if err := e.store.ApplyMovement(id, clean); err != nil {
		return world.MovementState{}, err
	}
	return clean, nil
}

// IsMissing reports whether err means the participant has no state.
func IsMissing(err error) bool {
	return errors.Is(err, world.ErrNotFound)
}

func sortedKeys(m map[string][]world.Point) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
