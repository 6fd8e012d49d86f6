package metrics

import (
	"errors"
	"fmt"

	"github.com/kilianp07/evcharge/core/factory"
)

// ErrSinkType is returned for a sink entry without a type name.
var ErrSinkType = errors.New("sink type is required")

// Config lists the sinks that receive step and session events. An empty
// list runs without telemetry.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate checks that every sink entry names a type. Whether the type is
// registered is only known once the infra adapters are linked in, so
// NewSink reports unknown types.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sink %d: %w", i, ErrSinkType)
		}
	}
	return nil
}
