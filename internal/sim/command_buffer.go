package sim

import (
	"sync"

	"sharedspace/server/internal/telemetry"
)

const (
	metricCommandQueueDepth    = "sim_command_queue_depth"
	metricCommandQueueOverflow = "sim_command_queue_overflow_total"
)

// CommandBuffer stores staged commands in a fixed-size ring. It is safe for
// concurrent producers and a single consumer.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	count   int
	metrics telemetry.Metrics
}

// NewCommandBuffer constructs a ring buffer with the provided capacity.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{data: make([]Command, capacity), metrics: metrics}
}

// Push stages a command, returning false if the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		b.metrics.Add(metricCommandQueueOverflow, 1)
		return false
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.metrics.Store(metricCommandQueueDepth, uint64(b.count))
	return true
}

// Drain returns all staged commands in FIFO order and clears the buffer.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head = (b.head + b.count) % len(b.data)
	b.count = 0
	b.metrics.Store(metricCommandQueueDepth, 0)
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
