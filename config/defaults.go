package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values applied to zero-valued scenario fields
const (
	// DefaultKind is the connection variant used when a scenario names none
	DefaultKind = KindAuthenticated

	// DefaultMaxTasks is the executor capacity for a scenario run
	DefaultMaxTasks = 16

	// DefaultReceiveTimeout bounds every suspending step
	DefaultReceiveTimeout = 5 * time.Second
)

// GenerateScenarioName generates a unique name for scenarios that do not set one.
func GenerateScenarioName() string {
	return "scenario-" + uuid.New().String()
}
