package llm

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/types"
)

// Outcome is the result of one completion: either text or a single tool call.
type Outcome struct {
	Text     string
	ToolCall *ToolCall
	Usage    ChatUsage
}

// IsToolCall reports whether the model chose to call a tool.
func (o *Outcome) IsToolCall() bool {
	return o != nil && o.ToolCall != nil
}

// Complete runs req against p and reduces the first choice to an Outcome.
// Completions are read-only, so transient provider errors are retried
// through r when it is non-nil.
func Complete(ctx context.Context, p Provider, r retry.Retryer, req *ChatRequest) (*Outcome, error) {
	resp, err := CompletionWithRetry(ctx, p, r, req)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Choices) == 0 {
		return nil, types.NewError(types.ErrProviderUnavailable, fmt.Sprintf("%s returned no choices", p.Name())).
			WithProvider(p.Name())
	}

	msg := resp.Choices[0].Message
	out := &Outcome{Text: msg.Content, Usage: resp.Usage}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		out.ToolCall = &tc
	}
	return out, nil
}

// CompletionWithRetry calls p.Completion, retrying through r when it is
// non-nil. Errors come back as *types.Error: deadlines as UPSTREAM_TIMEOUT,
// untyped provider errors as PROVIDER_UNAVAILABLE.
func CompletionWithRetry(ctx context.Context, p Provider, r retry.Retryer, req *ChatRequest) (*ChatResponse, error) {
	call := func() (*ChatResponse, error) {
		return p.Completion(ctx, req)
	}

	var (
		resp *ChatResponse
		err  error
	)
	if r != nil {
		resp, err = retry.DoWithResultTyped(r, ctx, call)
	} else {
		resp, err = call()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, types.FromContext(ctxErr)
		}
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.WrapError(types.ErrProviderUnavailable, "completion failed", err).
			WithProvider(p.Name())
	}
	return resp, nil
}

// RetryClassifier retries only errors flagged retryable by their producer.
func RetryClassifier(err error) bool {
	return types.IsRetryable(err)
}
