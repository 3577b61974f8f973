// Package handoff defines the responder contract and the transfer protocol
// used by the swarm router.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoTarget is returned for a handoff request without a target.
var ErrNoTarget = errors.New("handoff target is empty")

// Capability describes what a responder can answer. Keywords are the routing
// hints the registry matches against the question text.
type Capability struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Priority    int      `json:"priority"`
}

// Exchange is one earlier turn of the conversation as a responder sees it.
type Exchange struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Responder string `json:"responder"`
}

// Link is one handoff already taken in the current turn.
type Link struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Rationale string `json:"rationale"`
}

// StepInput is everything a responder is given for one invocation.
type StepInput struct {
	ConversationID string
	Question       string

	// History holds earlier turns, oldest first
	History []Exchange

	// Chain holds the handoffs taken so far in this turn, in order
	Chain []Link
}

// Hop returns the number of handoffs already taken in this turn.
func (in StepInput) Hop() int { return len(in.Chain) }

// Request asks the router to transfer control to Target.
type Request struct {
	Target    string `json:"target"`
	Rationale string `json:"rationale"`
}

// StepResult is either an answer or a handoff request, never both.
type StepResult struct {
	Answer  string   `json:"answer,omitempty"`
	Handoff *Request `json:"handoff,omitempty"`
}

// Answered builds an answer result.
func Answered(text string) *StepResult {
	return &StepResult{Answer: text}
}

// HandoffTo builds a handoff result.
func HandoffTo(target, rationale string) *StepResult {
	return &StepResult{Handoff: &Request{Target: target, Rationale: rationale}}
}

// IsHandoff reports whether the responder requested a transfer.
func (r *StepResult) IsHandoff() bool {
	return r != nil && r.Handoff != nil
}

// Validate checks that r is a usable step outcome.
func (r *StepResult) Validate() error {
	switch {
	case r == nil:
		return errors.New("responder returned no result")
	case r.Handoff != nil && r.Answer != "":
		return errors.New("responder returned both an answer and a handoff")
	case r.Handoff != nil && strings.TrimSpace(r.Handoff.Target) == "":
		return ErrNoTarget
	}
	return nil
}

// Responder is a specialised answerer the router can dispatch to.
type Responder interface {
	// Name is the stable identity used for routing and as agent_name
	Name() string

	// Capabilities are the routing hints for initial classification
	Capabilities() []Capability

	// Step answers the question or asks for a handoff
	Step(ctx context.Context, in StepInput) (*StepResult, error)
}

// =============================================================================
// 🔀 Transfer tool
// =============================================================================

const transferToolPrefix = "transfer_to_"

// TransferToolName returns the tool name a model calls to hand off to target.
func TransferToolName(target string) string {
	var b strings.Builder
	b.WriteString(transferToolPrefix)
	for i, r := range target {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '-':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var transferParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "rationale": {
      "type": "string",
      "description": "Why the other responder is better suited, with any context it needs."
    }
  },
  "required": ["rationale"]
}`)

// TransferTool describes the handoff to target as a callable tool.
type TransferTool struct {
	Target      string
	Description string
}

// Name returns the tool name.
func (t TransferTool) Name() string { return TransferToolName(t.Target) }

// Parameters returns the JSON schema of the tool arguments.
func (t TransferTool) Parameters() json.RawMessage { return transferParameters }

// Parse turns a model tool call into a Request. ok is false when the call is
// for a different tool.
func (t TransferTool) Parse(name string, arguments json.RawMessage) (req *Request, ok bool, err error) {
	if name != t.Name() {
		return nil, false, nil
	}
	var args struct {
		Rationale string `json:"rationale"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return nil, true, fmt.Errorf("decode %s arguments: %w", name, err)
		}
	}
	return &Request{Target: t.Target, Rationale: strings.TrimSpace(args.Rationale)}, true, nil
}
