package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound reports a participant without movement state.
	ErrNotFound = errors.New("world: movement state not found")
	// ErrAlreadyExists reports a second InitMovement for the same participant.
	ErrAlreadyExists = errors.New("world: movement state already exists")
	// ErrStaleIndex reports a food index outside the current collection.
	ErrStaleIndex = errors.New("world: stale food index")
	// ErrStaleFood reports a food id that is no longer in the collection.
	ErrStaleFood = errors.New("world: food already consumed")
)

// Snapshot is a point-in-time copy of the world. Each MovementState is
// copied atomically; nothing in a Snapshot aliases store memory.
type Snapshot struct {
	Movement map[string]MovementState
	Food     []FoodItem
}

// Store owns every participant's MovementState and the ordered food
// collection. Movement and food are guarded by separate locks; when both
// are needed the movement lock is always taken first.
type Store struct {
	cfg Config

	mu       sync.RWMutex
	movement map[string]MovementState

	foodMu  sync.Mutex
	food    []FoodItem
	entropy *ulid.MonotonicEntropy
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewStore builds a store seeded with cfg.InitialFood items.
func NewStore(cfg Config) *Store {
	cfg = cfg.Normalized()
	s := &Store{
		cfg:      cfg,
		movement: make(map[string]MovementState),
		food:     make([]FoodItem, 0, cfg.MaxFood),
		entropy:  ulid.Monotonic(NewRNG(cfg.Seed, "food-ids"), 0),
		now:      time.Now,
		rng:      NewRNG(cfg.Seed, "positions"),
	}
	for i := 0; i < cfg.InitialFood; i++ {
		s.SpawnFood()
	}
	return s
}

// Config returns the normalized configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Arena returns the arena bounds.
func (s *Store) Arena() Arena {
	return s.cfg.Arena
}

// RandomSpawn picks a spawn point inside the arena.
func (s *Store) RandomSpawn() Point {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return RandomPoint(s.rng, s.cfg.Arena, s.cfg.SpawnMargin)
}

// InitMovement creates the default state for id at spawn.
func (s *Store) InitMovement(id string, spawn Point) (MovementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.movement[id]; exists {
		return MovementState{}, fmt.Errorf("init %s: %w", id, ErrAlreadyExists)
	}
	state := NewMovementState(s.cfg.Arena.Wrap(spawn), s.cfg.InitialLength)
	s.movement[id] = state
	return state.Clone(), nil
}

// Movement returns a copy of id's state.
func (s *Store) Movement(id string) (MovementState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.movement[id]
	if !ok {
		return MovementState{}, false
	}
	return state.Clone(), true
}

// ApplyMovement replaces id's state wholesale. Last write wins.
func (s *Store) ApplyMovement(id string, state MovementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movement[id]; !ok {
		return fmt.Errorf("apply %s: %w", id, ErrNotFound)
	}
	s.movement[id] = state.Clone()
	return nil
}

// UpdateMovement runs fn against a copy of id's state and stores the result
// unless fn fails. The whole read-modify-write holds the movement lock, so
// fn must not call back into movement methods of the store.
func (s *Store) UpdateMovement(id string, fn func(state *MovementState) error) (MovementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.movement[id]
	if !ok {
		return MovementState{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return current.Clone(), err
	}
	s.movement[id] = next
	return next.Clone(), nil
}

// DeleteMovement removes id's state. Deleting a missing state is a no-op.
func (s *Store) DeleteMovement(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.movement[id]
	delete(s.movement, id)
	return ok
}

// IDs lists participants with movement state in stable order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.movement))
	for id := range s.movement {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// OtherTrails copies the trails of every participant except id.
func (s *Store) OtherTrails(id string) map[string][]Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trails := make(map[string][]Point, len(s.movement))
	for other, state := range s.movement {
		if other == id {
			continue
		}
		trail := make([]Point, len(state.Trail))
		copy(trail, state.Trail)
		trails[other] = trail
	}
	return trails
}

// Snapshot copies the movement map and the food collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	movement := make(map[string]MovementState, len(s.movement))
	for id, state := range s.movement {
		movement[id] = state.Clone()
	}
	s.mu.RUnlock()

	return Snapshot{Movement: movement, Food: s.Food()}
}

// Food copies the ordered food collection.
func (s *Store) Food() []FoodItem {
	s.foodMu.Lock()
	defer s.foodMu.Unlock()
	return cloneFood(s.food)
}

// FoodCount returns the number of live food items.
func (s *Store) FoodCount() int {
	s.foodMu.Lock()
	defer s.foodMu.Unlock()
	return len(s.food)
}

// SpawnFood appends one item at a random position when below the maximum.
func (s *Store) SpawnFood() (FoodItem, bool) {
	return s.AddFood(s.RandomSpawn())
}

// AddFood appends one item at position when below the maximum.
func (s *Store) AddFood(position Point) (FoodItem, bool) {
	position = s.cfg.Arena.Wrap(position)

	s.foodMu.Lock()
	defer s.foodMu.Unlock()
	if len(s.food) >= s.cfg.MaxFood {
		return FoodItem{}, false
	}
	id, err := ulid.New(ulid.Timestamp(s.now()), s.entropy)
	if err != nil {
		// The monotonic source overflowed within one millisecond; retry next tick.
		return FoodItem{}, false
	}
	item := FoodItem{ID: FoodID(id.String()), Position: position}
	s.food = append(s.food, item)
	return item, true
}

// ResetFood drops every item and reseeds the initial food.
func (s *Store) ResetFood() []FoodItem {
	s.foodMu.Lock()
	s.food = s.food[:0]
	s.foodMu.Unlock()
	for i := 0; i < s.cfg.InitialFood; i++ {
		s.SpawnFood()
	}
	return s.Food()
}

// ConsumeFood removes the item with the given id. Of two concurrent
// consumers of the same id exactly one succeeds; the other gets ErrStaleFood.
func (s *Store) ConsumeFood(id FoodID) (FoodItem, error) {
	s.foodMu.Lock()
	defer s.foodMu.Unlock()
	for i, item := range s.food {
		if item.ID == id {
			s.removeFoodLocked(i)
			return item, nil
		}
	}
	return FoodItem{}, fmt.Errorf("consume %s: %w", id, ErrStaleFood)
}

// ConsumeFoodAt removes the item at index, validated against the collection
// as it is when the lock is held.
func (s *Store) ConsumeFoodAt(index int) (FoodItem, error) {
	s.foodMu.Lock()
	defer s.foodMu.Unlock()
	if index < 0 || index >= len(s.food) {
		return FoodItem{}, fmt.Errorf("consume index %d of %d: %w", index, len(s.food), ErrStaleIndex)
	}
	item := s.food[index]
	s.removeFoodLocked(index)
	return item, nil
}

func (s *Store) removeFoodLocked(index int) {
	copy(s.food[index:], s.food[index+1:])
	s.food[len(s.food)-1] = FoodItem{}
	s.food = s.food[:len(s.food)-1]
}
