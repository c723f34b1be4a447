package server

import "time"

const (
	defaultTickInterval      = 50 * time.Millisecond
	defaultFoodSpawnInterval = 30 * time.Second
	defaultCommandCapacity   = 256
	defaultPerActorCommands  = 8
)
