package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sharedspace/server/internal/telemetry"
	"sharedspace/server/internal/world"
	"sharedspace/server/logging"
	"sharedspace/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

const (
	metricTicks          = "sim_ticks_total"
	metricResets         = "sim_resets_total"
	metricFoodConsumed   = "sim_food_consumed_total"
	metricFoodSpawned    = "sim_food_spawned_total"
	metricTurnsRejected  = "sim_turns_rejected_total"
	metricTickOverruns   = "sim_tick_overruns_total"
	metricCommandsDenied = "sim_commands_dropped_total"
)

// LoopConfig tunes the command buffer and the tick and spawn timers.
type LoopConfig struct {
	TickInterval      time.Duration
	FoodSpawnInterval time.Duration
	// Simulate enables movement ticks. Without it only food spawns run.
	Simulate        bool
	CommandCapacity int
	PerActorLimit   int
}

// Move is one participant's result for a tick.
type Move struct {
	ID    string
	State world.MovementState
	Reset bool
	Cause ResetCause
}

// LoopStepResult summarises one tick.
type LoopStepResult struct {
	Tick        uint64
	Now         time.Time
	Moves       []Move
	Eaten       []world.FoodItem
	FoodChanged bool
	Food        []world.FoodItem
	Duration    time.Duration
	Budget      time.Duration
}

// LoopHooks lets the owner react to loop output.
type LoopHooks struct {
	AfterStep     func(LoopStepResult)
	OnFoodSpawned func(item world.FoodItem, food []world.FoodItem)
	OnCommandDrop func(reason string, cmd Command)
}

// Loop coordinates command ingestion, movement ticks and food spawning.
type Loop struct {
	engine  *Engine
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	pub     logging.Publisher
	clock   logging.Clock

	tick     atomic.Uint64
	overruns atomic.Uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
}

// NewLoop wraps engine with a command queue and timers.
func NewLoop(engine *Engine, cfg LoopConfig, deps Deps, hooks LoopHooks) *Loop {
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = logging.ClockFunc(time.Now)
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 256
	}
	return &Loop{
		engine:        engine,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		pub:           deps.Publisher,
		clock:         deps.Clock,
		perActorCount: make(map[string]int),
	}
}

// Engine returns the wrapped engine.
func (l *Loop) Engine() *Engine {
	return l.engine
}

// Tick returns the number of completed movement ticks.
func (l *Loop) Tick() uint64 {
	return l.tick.Load()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	reason := ""
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" && !l.buffer.Push(cmd) {
		reason = CommandRejectQueueFull
	}
	l.queueMu.Unlock()

	if reason != "" {
		l.metrics.Add(metricCommandsDenied, 1)
		if l.hooks.OnCommandDrop != nil {
			l.hooks.OnCommandDrop(reason, cmd)
		}
		return false, reason
	}
	return true, ""
}

// Advance applies staged commands and moves every participant once.
func (l *Loop) Advance(ctx context.Context, now time.Time) LoopStepResult {
	tick := l.tick.Add(1)
	l.metrics.Add(metricTicks, 1)
	result := LoopStepResult{Tick: tick, Now: now}

	store := l.engine.Store()
	l.applyTurns(l.drainCommands())

	for _, id := range store.IDs() {
		out, err := l.engine.Advance(id)
		if err != nil {
			// Left between IDs and Advance.
			continue
		}
		move := Move{ID: id, State: out.State, Reset: out.Phase == PhaseResetting, Cause: out.Cause}
		result.Moves = append(result.Moves, move)
		actor := logging.ParticipantRef(id)
		if move.Reset {
			l.metrics.Add(metricResets, 1)
			simulation.ParticipantReset(ctx, l.pub, tick, actor, simulation.ParticipantResetPayload{
				Cause:  string(out.Cause),
				Length: out.State.Length,
			})
		}
		for _, item := range out.Eaten {
			l.metrics.Add(metricFoodConsumed, 1)
			result.Eaten = append(result.Eaten, item)
			simulation.FoodConsumed(ctx, l.pub, tick, actor, simulation.FoodConsumedPayload{
				FoodID:    string(item.ID),
				Remaining: store.FoodCount(),
			})
		}
	}

	if len(result.Eaten) > 0 {
		result.FoodChanged = true
		result.Food = store.Food()
	}
	return result
}

// SpawnFood adds one food item if the collection has room.
func (l *Loop) SpawnFood(ctx context.Context) (world.FoodItem, bool) {
	store := l.engine.Store()
	item, ok := store.SpawnFood()
	if !ok {
		return world.FoodItem{}, false
	}
	food := store.Food()
	l.metrics.Add(metricFoodSpawned, 1)
	simulation.FoodSpawned(ctx, l.pub, l.tick.Load(), simulation.FoodSpawnedPayload{
		FoodID: string(item.ID),
		X:      item.Position.X,
		Y:      item.Position.Y,
		Total:  len(food),
	})
	if l.hooks.OnFoodSpawned != nil {
		l.hooks.OnFoodSpawned(item, food)
	}
	return item, true
}

// Run drives the tick and spawn timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	var tickC, spawnC <-chan time.Time
	if l.config.Simulate && l.config.TickInterval > 0 {
		ticker := time.NewTicker(l.config.TickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}
	if l.config.FoodSpawnInterval > 0 {
		spawner := time.NewTicker(l.config.FoodSpawnInterval)
		defer spawner.Stop()
		spawnC = spawner.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			start := l.clock.Now()
			result := l.Advance(ctx, start)
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = l.config.TickInterval
			if result.Duration > result.Budget {
				l.reportOverrun(ctx, result)
			}
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		case <-spawnC:
			l.SpawnFood(ctx)
		}
	}
}

// applyTurns validates every queued turn against the heading the
// participant moved with on the previous tick and keeps the last valid one.
// Two perpendicular turns in one tick therefore never add up to a reversal.
func (l *Loop) applyTurns(commands []Command) {
	store := l.engine.Store()
	start := make(map[string]world.Point)
	chosen := make(map[string]world.Point)
	var order []string
	for _, cmd := range commands {
		if cmd.Type != CommandTurn || cmd.Turn == nil {
			continue
		}
		heading, seen := start[cmd.ActorID]
		if !seen {
			state, ok := store.Movement(cmd.ActorID)
			if !ok {
				continue
			}
			heading = state.Direction
			start[cmd.ActorID] = heading
		}
		if err := ValidateHeading(heading, cmd.Turn.Heading); err != nil {
			l.metrics.Add(metricTurnsRejected, 1)
			continue
		}
		if _, ok := chosen[cmd.ActorID]; !ok {
			order = append(order, cmd.ActorID)
		}
		chosen[cmd.ActorID] = cmd.Turn.Heading
	}
	for _, id := range order {
		if _, err := l.engine.Turn(id, chosen[id]); errors.Is(err, ErrInvalidHeading) {
			l.metrics.Add(metricTurnsRejected, 1)
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) reportOverrun(ctx context.Context, result LoopStepResult) {
	l.metrics.Add(metricTickOverruns, 1)
	count := l.overruns.Add(1)
	// Only powers of two are logged.
	if count&(count-1) == 0 {
		l.logger.Printf("[tick] tick=%d took %s budget=%s overruns=%d", result.Tick, result.Duration, result.Budget, count)
	}
	simulation.TickOverrun(ctx, l.pub, result.Tick, simulation.TickOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
	})
}
