package handoff

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// Classification is the outcome of matching a question against the
// registered capabilities.
type Classification struct {
	// Responder is the best match; empty when nothing matched or the top
	// scores tie
	Responder string

	// Confidence is the winner's share of the total score, in [0, 1]
	Confidence float64

	Scores map[string]float64
}

// Registry holds the responders the router can dispatch to.
type Registry struct {
	responders map[string]Responder
	order      []string
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		responders: make(map[string]Responder),
		logger:     logger.With(zap.String("component", "handoff_registry")),
	}
}

// Register adds a responder. Names must be unique.
func (r *Registry) Register(responder Responder) error {
	if responder == nil || responder.Name() == "" {
		return fmt.Errorf("responder must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := responder.Name()
	if _, exists := r.responders[name]; exists {
		return fmt.Errorf("responder already registered: %s", name)
	}
	r.responders[name] = responder
	r.order = append(r.order, name)
	r.logger.Info("registered responder", zap.String("name", name))
	return nil
}

// Get returns the responder with the given name.
func (r *Registry) Get(name string) (Responder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	responder, ok := r.responders[name]
	return responder, ok
}

// Names returns responder names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered responders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Classify scores every responder by the capability keywords found in
// question. Each distinct keyword hit counts its capability's priority
// (minimum 1).
func (r *Registry) Classify(question string) Classification {
	words := tokenize(question)
	text := " " + strings.Join(words, " ") + " "

	r.mu.RLock()
	defer r.mu.RUnlock()

	scores := make(map[string]float64, len(r.order))
	var total float64
	for _, name := range r.order {
		var score float64
		for _, c := range r.responders[name].Capabilities() {
			weight := float64(c.Priority)
			if weight < 1 {
				weight = 1
			}
			seen := make(map[string]bool, len(c.Keywords))
			for _, kw := range c.Keywords {
				norm := strings.Join(tokenize(kw), " ")
				if norm == "" || seen[norm] {
					continue
				}
				seen[norm] = true
				if strings.Contains(text, " "+norm+" ") {
					score += weight
				}
			}
		}
		scores[name] = score
		total += score
	}

	out := Classification{Scores: scores}
	if total == 0 {
		return out
	}

	ranked := append([]string(nil), r.order...)
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })
	if len(ranked) > 1 && scores[ranked[0]] == scores[ranked[1]] {
		return out
	}
	out.Responder = ranked[0]
	out.Confidence = scores[ranked[0]] / total
	return out
}

// tokenize lowercases s and splits it into letter/digit words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
