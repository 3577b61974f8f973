package swarm

import (
	"fmt"
	"time"
)

// InitialPolicy selects the responder that opens a turn.
type InitialPolicy string

const (
	// PolicyResume continues with the last active responder and classifies
	// only the first turn of a conversation.
	PolicyResume InitialPolicy = "resume"

	// PolicyReclassify classifies every turn and falls back to the last
	// active responder on ties or low confidence.
	PolicyReclassify InitialPolicy = "reclassify"
)

// Config controls routing.
type Config struct {
	MaxHops          int           `json:"max_hops" yaml:"max_hops"`
	TurnTimeout      time.Duration `json:"turn_timeout" yaml:"turn_timeout"`
	DefaultResponder string        `json:"default_responder" yaml:"default_responder"`
	InitialPolicy    InitialPolicy `json:"initial_policy" yaml:"initial_policy"`
	MinConfidence    float64       `json:"min_confidence" yaml:"min_confidence"`
	HistoryTurns     int           `json:"history_turns" yaml:"history_turns"`
}

// DefaultConfig returns the routing defaults.
func DefaultConfig() Config {
	return Config{
		MaxHops:          3,
		TurnTimeout:      60 * time.Second,
		DefaultResponder: "DocumentResponder",
		InitialPolicy:    PolicyResume,
		MinConfidence:    0.34,
		HistoryTurns:     6,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxHops < 0 {
		return fmt.Errorf("max_hops must be >= 0, got %d", c.MaxHops)
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn_timeout must be >= 0, got %s", c.TurnTimeout)
	}
	if c.DefaultResponder == "" {
		return fmt.Errorf("default_responder is required")
	}
	switch c.InitialPolicy {
	case PolicyResume, PolicyReclassify:
	default:
		return fmt.Errorf("initial_policy must be %q or %q, got %q", PolicyResume, PolicyReclassify, c.InitialPolicy)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must be >= 0, got %d", c.HistoryTurns)
	}
	return nil
}
