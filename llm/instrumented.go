package llm

import (
	"context"
	"time"

	"github.com/BaSui01/agentswarm/types"
)

// Recorder receives one observation per completion call.
// *metrics.Collector satisfies it.
type Recorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

type instrumented struct {
	Provider
	rec Recorder
}

// Instrument wraps p so every Completion is reported to rec. A nil rec
// returns p unchanged.
func Instrument(p Provider, rec Recorder) Provider {
	if rec == nil {
		return p
	}
	return &instrumented{Provider: p, rec: rec}
}

func (i *instrumented) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := i.Provider.Completion(ctx, req)

	model := req.Model
	status := "success"
	var prompt, completion int
	switch {
	case err != nil:
		status = "error"
		if types.IsErrorCode(err, types.ErrUpstreamTimeout) || ctx.Err() != nil {
			status = "timeout"
		}
	case resp != nil:
		if resp.Model != "" {
			model = resp.Model
		}
		prompt = resp.Usage.PromptTokens
		completion = resp.Usage.CompletionTokens
	}
	i.rec.RecordLLMRequest(i.Provider.Name(), model, status, time.Since(start), prompt, completion)
	return resp, err
}
