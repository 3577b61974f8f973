package responders

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
)

// base carries what both variants share: the model, the retry policy and
// the transfer tool to the other responder.
type base struct {
	name        string
	provider    llm.Provider
	retryer     retry.Retryer
	model       string
	temperature float32
	transfer    handoff.TransferTool
	logger      *zap.Logger
}

func newBase(name string, transfer handoff.TransferTool, deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retryer := deps.Retryer
	if retryer == nil {
		policy := retry.DefaultRetryPolicy()
		policy.Classifier = llm.RetryClassifier
		retryer = retry.NewBackoffRetryer(policy, logger)
	}
	return base{
		name:        name,
		provider:    deps.LLM,
		retryer:     retryer,
		model:       deps.Model,
		temperature: deps.Temperature,
		transfer:    transfer,
		logger:      logger.With(zap.String("component", "responder"), zap.String("responder", name)),
	}
}

// messages lays out the prompt: system rules, earlier turns, the handoff
// chain, the gathered context, then the question.
func (b *base) messages(system, gathered string, in handoff.StepInput) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(in.History)+4)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})

	for _, ex := range in.History {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: ex.Question},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Answer, Name: ex.Responder},
		)
	}

	if len(in.Chain) > 0 {
		var sb strings.Builder
		sb.WriteString("This question was transferred to you.")
		for _, l := range in.Chain {
			fmt.Fprintf(&sb, "\n- %s -> %s", l.From, l.To)
			if l.Rationale != "" {
				fmt.Fprintf(&sb, ": %s", l.Rationale)
			}
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	}

	if gathered != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: gathered})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Question})
	return msgs
}

// decide asks the model and turns its outcome into a step result.
func (b *base) decide(ctx context.Context, msgs []llm.Message, in handoff.StepInput) (*handoff.StepResult, error) {
	req := &llm.ChatRequest{
		Model:       b.model,
		Messages:    msgs,
		Temperature: b.temperature,
		Tools: []llm.ToolSchema{{
			Name:        b.transfer.Name(),
			Description: b.transfer.Description,
			Parameters:  b.transfer.Parameters(),
		}},
		ToolChoice: "auto",
		Metadata: map[string]string{
			"responder":       b.name,
			"conversation_id": in.ConversationID,
		},
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	out, err := llm.Complete(ctx, b.provider, b.retryer, req)
	if err != nil {
		return nil, err
	}

	if out.IsToolCall() {
		hreq, ok, perr := b.transfer.Parse(out.ToolCall.Name, out.ToolCall.Arguments)
		if !ok {
			return nil, types.NewError(types.ErrResponderFailure,
				fmt.Sprintf("%s called unknown tool %q", b.name, out.ToolCall.Name))
		}
		if perr != nil {
			return nil, types.WrapError(types.ErrResponderFailure, "invalid transfer arguments", perr)
		}
		b.logger.Debug("handoff requested",
			zap.String("target", hreq.Target),
			zap.String("rationale", hreq.Rationale))
		return &handoff.StepResult{Handoff: hreq}, nil
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, types.NewError(types.ErrResponderFailure, b.name+" returned an empty answer")
	}
	return handoff.Answered(text), nil
}
