package world

import (
	"errors"
	"sync"
	"testing"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Seed == "" {
		cfg.Seed = "store-test"
	}
	return NewStore(cfg)
}

func TestNewStoreSeedsInitialFood(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 2
	cfg.MaxFood = 3
	store := newTestStore(t, cfg)

	food := store.Food()
	if len(food) != 2 {
		t.Fatalf("expected 2 initial food items, got %d", len(food))
	}
	if food[0].ID == food[1].ID {
		t.Fatalf("expected distinct food ids, got %q twice", food[0].ID)
	}
	if food[0].ID > food[1].ID {
		t.Fatalf("expected food ids to sort in spawn order: %q then %q", food[0].ID, food[1].ID)
	}
}

func TestSpawnFoodStopsAtMaximum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 0
	cfg.MaxFood = 2
	store := newTestStore(t, cfg)

	for i := 0; i < 2; i++ {
		if _, ok := store.SpawnFood(); !ok {
			t.Fatalf("expected spawn %d to succeed", i)
		}
	}
	if _, ok := store.SpawnFood(); ok {
		t.Fatalf("expected spawn beyond maximum to be refused")
	}
	if got := store.FoodCount(); got != 2 {
		t.Fatalf("expected 2 food items, got %d", got)
	}
}

func TestSpawnedFoodStaysInsideArena(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 0
	cfg.MaxFood = 50
	store := newTestStore(t, cfg)

	for i := 0; i < 50; i++ {
		item, ok := store.SpawnFood()
		if !ok {
			t.Fatalf("spawn %d refused", i)
		}
		p := item.Position
		if p.X < cfg.SpawnMargin || p.X > cfg.Arena.Width-cfg.SpawnMargin || p.Y < cfg.SpawnMargin || p.Y > cfg.Arena.Height-cfg.SpawnMargin {
			t.Fatalf("food spawned outside margin: %+v", p)
		}
	}
}

func TestInitMovementRejectsDuplicate(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	state, err := store.InitMovement("a", Point{X: 10, Y: 20})
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if state.Length != 15 || len(state.Trail) != 0 || state.Direction != DefaultHeading {
		t.Fatalf("unexpected default state %+v", state)
	}
	if _, err := store.InitMovement("a", Point{}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestApplyMovementReplacesWholesale(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	if _, err := store.InitMovement("a", Point{X: 1, Y: 1}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	next := MovementState{Position: Point{X: 5, Y: 5}, Direction: Point{Y: 1}, Trail: []Point{{X: 4, Y: 5}}, Length: 20}
	if err := store.ApplyMovement("a", next); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	next.Trail[0] = Point{X: 99, Y: 99}

	got, _ := store.Movement("a")
	if got.Length != 20 || got.Position != (Point{X: 5, Y: 5}) {
		t.Fatalf("unexpected state after apply: %+v", got)
	}
	if got.Trail[0] != (Point{X: 4, Y: 5}) {
		t.Fatalf("store must not alias caller trail, got %+v", got.Trail[0])
	}

	if err := store.ApplyMovement("ghost", next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMovementKeepsStateOnError(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	if _, err := store.InitMovement("a", Point{X: 1, Y: 1}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	boom := errors.New("boom")

	_, err := store.UpdateMovement("a", func(state *MovementState) error {
		state.Length = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := store.Movement("a")
	if got.Length != 15 {
		t.Fatalf("expected failed update to leave state untouched, got length %d", got.Length)
	}
}

func TestDeleteMovementIsIdempotent(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	store.InitMovement("a", Point{})

	if !store.DeleteMovement("a") {
		t.Fatalf("expected first delete to report removal")
	}
	if store.DeleteMovement("a") {
		t.Fatalf("expected second delete to be a no-op")
	}
	if _, ok := store.Movement("a"); ok {
		t.Fatalf("expected state to be gone")
	}
}

func TestSnapshotIsDetachedFromStore(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	store.InitMovement("a", Point{X: 3, Y: 4})
	store.ApplyMovement("a", MovementState{Position: Point{X: 3, Y: 4}, Trail: []Point{{X: 1, Y: 1}}, Length: 15, Direction: DefaultHeading})

	snapshot := store.Snapshot()
	snapshot.Movement["a"].Trail[0] = Point{X: 42, Y: 42}
	if len(snapshot.Food) > 0 {
		snapshot.Food[0].ID = "mutated"
	}

	got, _ := store.Movement("a")
	if got.Trail[0] != (Point{X: 1, Y: 1}) {
		t.Fatalf("snapshot aliased store trail")
	}
	for _, item := range store.Food() {
		if item.ID == "mutated" {
			t.Fatalf("snapshot aliased store food")
		}
	}
}

func TestConsumeFoodAtRejectsStaleIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 2
	store := newTestStore(t, cfg)

	first := store.Food()[0]
	removed, err := store.ConsumeFoodAt(0)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if removed.ID != first.ID {
		t.Fatalf("expected to remove %q, removed %q", first.ID, removed.ID)
	}

	if _, err := store.ConsumeFoodAt(1); !errors.Is(err, ErrStaleIndex) {
		t.Fatalf("expected ErrStaleIndex for shifted index, got %v", err)
	}
	if _, err := store.ConsumeFoodAt(-1); !errors.Is(err, ErrStaleIndex) {
		t.Fatalf("expected ErrStaleIndex for negative index, got %v", err)
	}
	if got := store.FoodCount(); got != 1 {
		t.Fatalf("expected rejected consumption to keep 1 item, got %d", got)
	}
}

func TestConcurrentConsumptionOfSameIndexRemovesOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		cfg := DefaultConfig()
		cfg.InitialFood = 1
		cfg.MaxFood = 1
		store := newTestStore(t, cfg)

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			results = make(chan error, 2)
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := store.ConsumeFoodAt(0)
				results <- err
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		var successes, rejections int
		for err := range results {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrStaleIndex):
				rejections++
			default:
				t.Fatalf("unexpected error %v", err)
			}
		}
		if successes != 1 || rejections != 1 {
			t.Fatalf("round %d: expected 1 success and 1 rejection, got %d/%d", round, successes, rejections)
		}
		if store.FoodCount() != 0 {
			t.Fatalf("round %d: expected empty collection", round)
		}
	}
}

func TestConcurrentConsumptionOfSameIDRemovesOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 2
	store := newTestStore(t, cfg)
	target := store.Food()[1].ID

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ConsumeFood(target)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrStaleFood) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	remaining := store.Food()
	if len(remaining) != 1 || remaining[0].ID == target {
		t.Fatalf("expected only the untouched item to remain, got %+v", remaining)
	}
}

func TestAddFoodAndReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFood = 1
	cfg.MaxFood = 3
	store := newTestStore(t, cfg)

	item, ok := store.AddFood(Point{X: 805, Y: 10})
	if !ok {
		t.Fatalf("expected food to be added")
	}
	if item.Position.X != 5 {
		t.Fatalf("expected position wrapped into arena, got %+v", item.Position)
	}
	if store.FoodCount() != 2 {
		t.Fatalf("expected 2 items, got %d", store.FoodCount())
	}

	food := store.ResetFood()
	if len(food) != 1 || food[0].ID == item.ID {
		t.Fatalf("expected a single freshly seeded item, got %+v", food)
	}
}
