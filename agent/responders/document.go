package responders

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/rag"
	"github.com/BaSui01/agentswarm/types"
)

// Retrieval defaults for the curriculum knowledge base. The similarity
// threshold is used as configured; 0 is a valid floor.
const (
	DefaultMaxResults = 7
	DefaultThreshold  = 0.5
)

// DocumentResponder answers from the retrieval cache of one source document.
type DocumentResponder struct {
	base
	retriever   Retriever
	fingerprint string
	maxResults  int
	threshold   float64
}

// NewDocumentResponder creates the curriculum responder.
func NewDocumentResponder(deps Deps) (*DocumentResponder, error) {
	if deps.LLM == nil {
		return nil, types.NewInvalidInputError("document responder requires an llm provider")
	}
	if deps.Retriever == nil {
		return nil, types.NewInvalidInputError("document responder requires a retriever")
	}
	if deps.Fingerprint == "" {
		return nil, types.NewInvalidInputError("document responder requires a collection fingerprint")
	}
	maxResults := deps.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	transfer := handoff.TransferTool{Target: SearchResponderName, Description: documentTransferDescription}
	return &DocumentResponder{
		base:        newBase(DocumentResponderName, transfer, deps),
		retriever:   deps.Retriever,
		fingerprint: deps.Fingerprint,
		maxResults:  maxResults,
		threshold:   deps.Threshold,
	}, nil
}

func (d *DocumentResponder) Name() string { return DocumentResponderName }

func (d *DocumentResponder) Capabilities() []handoff.Capability {
	return []handoff.Capability{{
		Name:        "curriculum",
		Description: "Questions about the candidate's professional curriculum",
		Keywords: []string{
			"candidate", "curriculum", "cv", "resume", "experience", "skills",
			"languages", "education", "degree", "university", "projects",
			"certifications", "courses", "career", "professional", "worked",
		},
		Priority: 1,
	}}
}

// Step retrieves the excerpts for the question, then lets the model answer
// from them or transfer.
func (d *DocumentResponder) Step(ctx context.Context, in handoff.StepInput) (*handoff.StepResult, error) {
	hits, err := d.retriever.Retrieve(ctx, d.fingerprint, in.Question, d.maxResults, d.threshold)
	if err != nil {
		return nil, err
	}
	return d.decide(ctx, d.messages(documentSystemPrompt, formatExcerpts(hits), in), in)
}

func formatExcerpts(hits []rag.ScoredChunk) string {
	if len(hits) == 0 {
		return "Curriculum excerpts: none matched this question."
	}
	var b strings.Builder
	b.WriteString("Curriculum excerpts:")
	for i, h := range hits {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, strings.TrimSpace(h.Text))
	}
	return b.String()
}
