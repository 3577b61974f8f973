package responders

import (
	"context"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/types"
)

// SearchResponder always runs a web search before answering.
type SearchResponder struct {
	base
	search  tools.WebSearchProvider
	options tools.WebSearchOptions
}

// NewSearchResponder creates the web search responder.
func NewSearchResponder(deps Deps) (*SearchResponder, error) {
	if deps.LLM == nil {
		return nil, types.NewInvalidInputError("search responder requires an llm provider")
	}
	if deps.Search == nil {
		return nil, types.NewInvalidInputError("search responder requires a web search provider")
	}
	opts := deps.SearchOptions
	if opts.MaxResults <= 0 {
		opts.MaxResults = tools.DefaultWebSearchOptions().MaxResults
	}

	transfer := handoff.TransferTool{Target: DocumentResponderName, Description: searchTransferDescription}
	return &SearchResponder{
		base:    newBase(SearchResponderName, transfer, deps),
		search:  deps.Search,
		options: opts,
	}, nil
}

func (s *SearchResponder) Name() string { return SearchResponderName }

func (s *SearchResponder) Capabilities() []handoff.Capability {
	return []handoff.Capability{{
		Name:        "web",
		Description: "Current information from the internet",
		Keywords: []string{
			"news", "latest", "current", "today", "recent", "trends", "market",
			"politics", "president", "election", "company", "companies",
			"product", "price", "internet", "web", "search",
		},
		Priority: 1,
	}}
}

// Step searches for the question and lets the model answer from the results.
func (s *SearchResponder) Step(ctx context.Context, in handoff.StepInput) (*handoff.StepResult, error) {
	answer, err := retry.DoWithResultTyped(s.retryer, ctx, func() (*tools.WebSearchAnswer, error) {
		return s.run(ctx, in.Question)
	})
	if err != nil {
		return nil, s.searchError(ctx, err)
	}
	gathered := "Web search results:\n" + tools.FormatResults(answer)
	return s.decide(ctx, s.messages(searchSystemPrompt, gathered, in), in)
}

func (s *SearchResponder) run(ctx context.Context, query string) (*tools.WebSearchAnswer, error) {
	if ap, ok := s.search.(tools.AnswerProvider); ok {
		return ap.SearchWithAnswer(ctx, query, s.options)
	}
	results, err := s.search.Search(ctx, query, s.options)
	if err != nil {
		return nil, err
	}
	return &tools.WebSearchAnswer{Query: query, Results: results}, nil
}

func (s *SearchResponder) searchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return types.FromContext(ctx.Err())
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.WrapError(types.ErrProviderUnavailable, "web search failed", err).
		WithProvider(s.search.Name())
}
