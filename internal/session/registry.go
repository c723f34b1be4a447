package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrCapacityExceeded is returned by Admit when the room is full.
	ErrCapacityExceeded = errors.New("session: capacity exceeded")
	// ErrNotFound reports an unknown participant id.
	ErrNotFound = errors.New("session: participant not found")
	// ErrInvalidName reports an empty or whitespace-only display name.
	ErrInvalidName = errors.New("session: invalid display name")
)

const (
	DefaultCapacity      = 3
	DefaultMaxNameLength = 32
)

// Link is the outbound half of a participant's transport connection.
type Link interface {
	Send(data []byte) error
	Close() error
}

// Recipient pairs a participant id with its link for fan-out.
type Recipient struct {
	ID   string
	Link Link
}

// Config bounds the registry.
type Config struct {
	Capacity      int
	Palette       []Color
	MaxNameLength int
}

// DefaultConfig returns a registry of DefaultCapacity seats using DefaultPalette.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		Palette:       DefaultPalette,
		MaxNameLength: DefaultMaxNameLength,
	}
}

// Normalized replaces unset limits with their defaults.
func (cfg Config) Normalized() Config {
	normalized := cfg
	if normalized.Capacity <= 0 {
		normalized.Capacity = DefaultCapacity
	}
	if len(normalized.Palette) == 0 {
		normalized.Palette = DefaultPalette
	}
	if normalized.MaxNameLength <= 0 {
		normalized.MaxNameLength = DefaultMaxNameLength
	}
	return normalized
}

type entry struct {
	participant Participant
	link        Link
}

// Registry is the authoritative table of connected participants. All
// mutation is serialized by a single mutex.
type Registry struct {
	cfg Config

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	joinSeq uint64
	newID   func() string
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.Normalized(),
		entries: make(map[string]*entry),
		newID:   uuid.NewString,
	}
}

// Capacity returns the configured participant limit.
func (r *Registry) Capacity() int {
	return r.cfg.Capacity
}

// Admit registers a participant for link. It fails with ErrCapacityExceeded
// without touching any state when the registry is full.
func (r *Registry) Admit(nameHint string, link Link) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.cfg.Capacity {
		return Participant{}, ErrCapacityExceeded
	}

	id := r.newID()
	for r.entries[id] != nil {
		id = r.newID()
	}
	seq := r.joinSeq
	r.joinSeq++

	name, err := r.cleanName(nameHint)
	if err != nil {
		name = fmt.Sprintf("Guest %d", seq+1)
	}

	participant := Participant{
		ID:    id,
		Name:  name,
		Color: r.cfg.Palette[seq%uint64(len(r.cfg.Palette))],
	}
	r.entries[id] = &entry{participant: participant, link: link}
	r.order = append(r.order, id)
	return participant, nil
}

// Rename updates a participant's display name.
func (r *Registry) Rename(id, name string) (Participant, error) {
	cleaned, err := r.cleanName(name)
	if err != nil {
		return Participant{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Participant{}, fmt.Errorf("rename %s: %w", id, ErrNotFound)
	}
	e.participant.Name = cleaned
	return e.participant, nil
}

// Remove deletes a participant. Removing an unknown id returns ErrNotFound
// and leaves the registry untouched, so repeated removal is harmless.
func (r *Registry) Remove(id string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Participant{}, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(r.entries, id)
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e.participant, nil
}

// Get returns the participant's profile.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Participant{}, false
	}
	return e.participant, true
}

// Lookup returns the participant's link.
func (r *Registry) Lookup(id string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.link, true
}

// List returns every participant in join order.
func (r *Registry) List() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	participants := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		participants = append(participants, r.entries[id].participant)
	}
	return participants
}

// Recipients returns every link except the one registered for exclude.
func (r *Registry) Recipients(exclude string) []Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recipients := make([]Recipient, 0, len(r.order))
	for _, id := range r.order {
		if id == exclude {
			continue
		}
		recipients = append(recipients, Recipient{ID: id, Link: r.entries[id].link})
	}
	return recipients
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > r.cfg.MaxNameLength {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:r.cfg.MaxNameLength]))
	}
	return name, nil
}
