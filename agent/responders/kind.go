package responders

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/rag"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
)

// Kind is the closed set of responder variants.
type Kind string

const (
	KindDocument Kind = "document"
	KindSearch   Kind = "search"
)

// Responder names double as agent_name in responses.
const (
	DocumentResponderName = "DocumentResponder"
	SearchResponderName   = "SearchResponder"
)

// Kinds returns every variant in dispatch-priority order.
func Kinds() []Kind { return []Kind{KindDocument, KindSearch} }

// ParseKind accepts a kind or a responder name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindDocument), strings.ToLower(DocumentResponderName):
		return KindDocument, nil
	case string(KindSearch), strings.ToLower(SearchResponderName):
		return KindSearch, nil
	default:
		return "", fmt.Errorf("unknown responder kind: %q", s)
	}
}

// Name returns the responder name for the kind.
func (k Kind) Name() string {
	switch k {
	case KindDocument:
		return DocumentResponderName
	case KindSearch:
		return SearchResponderName
	default:
		return ""
	}
}

// Retriever is the slice of rag.Cache the document responder needs.
type Retriever interface {
	Retrieve(ctx context.Context, fingerprint, query string, maxResults int, threshold float64) ([]rag.ScoredChunk, error)
}

// Deps holds everything the responders may need. Each kind uses its subset.
type Deps struct {
	LLM         llm.Provider
	Retryer     retry.Retryer
	Model       string
	Temperature float32
	Logger      *zap.Logger

	// document
	Retriever   Retriever
	Fingerprint string
	MaxResults  int
	Threshold   float64

	// search
	Search        tools.WebSearchProvider
	SearchOptions tools.WebSearchOptions
}

// New builds the responder for kind.
func New(kind Kind, deps Deps) (handoff.Responder, error) {
	if deps.LLM == nil {
		return nil, types.NewInvalidInputError("responder requires an llm provider")
	}
	switch kind {
	case KindDocument:
		return NewDocumentResponder(deps)
	case KindSearch:
		return NewSearchResponder(deps)
	default:
		return nil, types.NewInvalidInputError(fmt.Sprintf("unknown responder kind: %q", kind))
	}
}

// NewRegistry builds every kind and registers it.
func NewRegistry(deps Deps) (*handoff.Registry, error) {
	reg := handoff.NewRegistry(deps.Logger)
	for _, k := range Kinds() {
		r, err := New(k, deps)
		if err != nil {
			return nil, fmt.Errorf("build %s responder: %w", k, err)
		}
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
