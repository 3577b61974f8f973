package persistence

import (
	"fmt"
	"strings"
	"time"
)

// StepKind distinguishes the outcomes recorded in a turn's chain.
type StepKind string

const (
	StepAnswer  StepKind = "answer"
	StepHandoff StepKind = "handoff"
)

// Step is one responder invocation within a turn.
type Step struct {
	// Responder is the name of the responder that was invoked
	Responder string `json:"responder"`

	// Kind is answer or handoff
	Kind StepKind `json:"kind"`

	// Content is the answer text for answer steps
	Content string `json:"content,omitempty"`

	// Target and Rationale are set for handoff steps
	Target    string `json:"target,omitempty"`
	Rationale string `json:"rationale,omitempty"`

	// At is when the step finished
	At time.Time `json:"at"`
}

// Turn is one question and everything that happened while answering it.
// Turns are immutable once committed.
type Turn struct {
	// ID is the unique identifier for the turn
	ID string `json:"id"`

	// Question is the user's input
	Question string `json:"question"`

	// Steps is the chain of responder invocations in order
	Steps []Step `json:"steps"`

	// Answer is the final answer text
	Answer string `json:"answer"`

	// Responder is the name of the responder that produced Answer
	Responder string `json:"responder"`

	// CreatedAt is when the turn started
	CreatedAt time.Time `json:"created_at"`
}

// Hops returns the number of handoffs in the turn.
func (t Turn) Hops() int {
	n := 0
	for _, s := range t.Steps {
		if s.Kind == StepHandoff {
			n++
		}
	}
	return n
}

// Validate checks that the turn is complete enough to commit.
func (t Turn) Validate() error {
	switch {
	case strings.TrimSpace(t.Question) == "":
		return fmt.Errorf("%w: turn question is empty", ErrInvalidInput)
	case t.Responder == "":
		return fmt.Errorf("%w: turn responder is empty", ErrInvalidInput)
	case len(t.Steps) == 0:
		return fmt.Errorf("%w: turn has no steps", ErrInvalidInput)
	}
	last := t.Steps[len(t.Steps)-1]
	if last.Kind != StepAnswer || last.Responder != t.Responder {
		return fmt.Errorf("%w: turn must end with an answer from %s", ErrInvalidInput, t.Responder)
	}
	return nil
}

// Conversation is the durable state of one conversation.
type Conversation struct {
	// ID is the opaque conversation identifier
	ID string `json:"id"`

	// Turns are ordered and append-only
	Turns []Turn `json:"turns"`

	// ActiveResponder is the responder that answered last
	ActiveResponder string `json:"active_responder,omitempty"`

	// Version increases by one with every commit; 0 means never committed
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewConversation returns the empty conversation for an unknown id.
func NewConversation(id string) *Conversation {
	return &Conversation{ID: id, Turns: []Turn{}}
}

// RecentTurns returns up to n of the latest turns, oldest first.
func (c *Conversation) RecentTurns(n int) []Turn {
	if n <= 0 || n >= len(c.Turns) {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

// Clone returns a copy that shares no slices with c.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Turns = make([]Turn, len(c.Turns))
	for i, t := range c.Turns {
		t.Steps = append([]Step(nil), t.Steps...)
		out.Turns[i] = t
	}
	return &out
}

// WithTurn returns the conversation as a commit of turn would leave it.
// The receiver is not modified.
func (c *Conversation) WithTurn(turn Turn, activeResponder string, now time.Time) *Conversation {
	next := c.Clone()
	turn.Steps = append([]Step(nil), turn.Steps...)
	next.Turns = append(next.Turns, turn)
	next.ActiveResponder = activeResponder
	next.Version = c.Version + 1
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	return next
}

// validateCommit checks the arguments shared by every backend's Commit.
func validateCommit(conversationID string, expectedVersion int64, turn Turn, activeResponder string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id is empty", ErrInvalidInput)
	}
	if expectedVersion < 0 {
		return fmt.Errorf("%w: negative expected version", ErrInvalidInput)
	}
	if activeResponder == "" {
		return fmt.Errorf("%w: active responder is empty", ErrInvalidInput)
	}
	return turn.Validate()
}

func validateID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id is empty", ErrInvalidInput)
	}
	return nil
}
