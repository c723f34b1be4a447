package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"sharedspace/server/internal/session"
	"sharedspace/server/internal/sim"
	"sharedspace/server/internal/world"
)

// Authority selects who runs the movement simulation.
type Authority string

const (
	// AuthorityServer ticks every participant on the server; clients only
	// send heading changes.
	AuthorityServer Authority = "server"
	// AuthorityClient accepts client-reported states after sanitizing them.
	AuthorityClient Authority = "client"
)

// ParseAuthority maps a configuration value to an Authority.
func ParseAuthority(raw string) (Authority, error) {
	switch Authority(strings.ToLower(strings.TrimSpace(raw))) {
	case AuthorityServer, "":
		return AuthorityServer, nil
	case AuthorityClient:
		return AuthorityClient, nil
	default:
		return AuthorityServer, fmt.Errorf("unknown authority %q", raw)
	}
}

// HubConfig sizes the room and tunes the simulation.
type HubConfig struct {
	Authority         Authority
	Session           session.Config
	World             world.Config
	Rules             sim.Rules
	TickInterval      time.Duration
	FoodSpawnInterval time.Duration
	CommandCapacity   int
	PerActorCommands  int
	DebugTelemetry    bool
	Logger            *log.Logger
}

// DefaultHubConfig returns the standard three-seat room.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Authority:         AuthorityServer,
		Session:           session.DefaultConfig(),
		World:             world.DefaultConfig(),
		Rules:             sim.DefaultRules(),
		TickInterval:      defaultTickInterval,
		FoodSpawnInterval: defaultFoodSpawnInterval,
		CommandCapacity:   defaultCommandCapacity,
		PerActorCommands:  defaultPerActorCommands,
	}
}

// Normalized fills zero values with defaults and keeps the world and rules
// agreeing on the initial length.
func (cfg HubConfig) Normalized() HubConfig {
	normalized := cfg
	if normalized.Authority != AuthorityClient {
		normalized.Authority = AuthorityServer
	}
	normalized.Session = normalized.Session.Normalized()
	normalized.Rules = normalized.Rules.Normalized()
	normalized.World.InitialLength = normalized.Rules.InitialLength
	normalized.World = normalized.World.Normalized()
	if normalized.TickInterval <= 0 {
		normalized.TickInterval = defaultTickInterval
	}
	if normalized.FoodSpawnInterval <= 0 {
		normalized.FoodSpawnInterval = defaultFoodSpawnInterval
	}
	if normalized.CommandCapacity <= 0 {
		normalized.CommandCapacity = defaultCommandCapacity
	}
	if normalized.PerActorCommands < 0 {
		normalized.PerActorCommands = 0
	}
	return normalized
}
