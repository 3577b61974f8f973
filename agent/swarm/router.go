package swarm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/agent/persistence"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// =============================================================================
// 🔀 Swarm Router
// =============================================================================

// Result is a finished but uncommitted turn.
type Result struct {
	ConversationID string
	Answer         string
	Responder      string
	Turn           persistence.Turn

	// BaseVersion is the version the turn was computed against
	BaseVersion int64

	// Conversation is the state a successful Commit will store
	Conversation *persistence.Conversation
}

// Response is what the caller of Run receives.
type Response struct {
	AgentName      string `json:"agent_name"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
	Version        int64  `json:"version"`
}

// Router dispatches questions to responders and commits the outcome. It
// keeps no per-conversation state; all of it lives in the store.
type Router struct {
	registry *handoff.Registry
	store    persistence.ConversationStore
	config   Config
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics records turn, handoff and commit metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// NewRouter creates a router. The default responder must be registered.
func NewRouter(registry *handoff.Registry, store persistence.ConversationStore, config Config, logger *zap.Logger, opts ...Option) (*Router, error) {
	if registry == nil || store == nil {
		return nil, fmt.Errorf("router requires a registry and a store")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	if _, ok := registry.Get(config.DefaultResponder); !ok {
		return nil, fmt.Errorf("default responder %q is not registered", config.DefaultResponder)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		registry: registry,
		store:    store,
		config:   config,
		tracer:   otel.Tracer("github.com/BaSui01/agentswarm/agent/swarm"),
		logger:   logger.With(zap.String("component", "swarm_router")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run handles the question and commits the turn under one deadline.
func (r *Router) Run(ctx context.Context, conversationID, question string) (*Response, error) {
	if r.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TurnTimeout)
		defer cancel()
	}

	res, err := r.Handle(ctx, conversationID, question)
	if err != nil {
		return nil, err
	}
	conv, err := r.Commit(ctx, res)
	if err != nil {
		return nil, err
	}
	return &Response{
		AgentName:      res.Responder,
		Content:        res.Answer,
		ConversationID: conversationID,
		Version:        conv.Version,
	}, nil
}

// Handle computes the next turn without committing it. On any error the
// stored conversation is untouched.
func (r *Router) Handle(ctx context.Context, conversationID, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.NewInvalidInputError("question is empty")
	}
	if conversationID == "" {
		return nil, types.NewInvalidInputError("conversation_id is empty")
	}

	ctx, span := r.tracer.Start(ctx, "swarm.Handle",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	start := r.now()
	res, err := r.handle(ctx, conversationID, question, start)
	if err != nil {
		outcome := "failed"
		switch types.ConditionOf(err) {
		case types.ConditionRoutingExhausted:
			outcome = "exhausted"
		case types.ConditionUpstreamTimeout:
			outcome = "timeout"
		}
		r.metrics.RecordTurn("", outcome, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("turn failed",
			zap.String("conversation_id", conversationID),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil, err
	}

	hops := res.Turn.Hops()
	r.metrics.RecordTurn(res.Responder, "answered", hops, time.Since(start))
	span.SetAttributes(
		attribute.String("swarm.responder", res.Responder),
		attribute.Int("swarm.hops", hops),
	)
	return res, nil
}

func (r *Router) handle(ctx context.Context, conversationID, question string, start time.Time) (*Result, error) {
	conv, err := r.store.Load(ctx, conversationID)
	if err != nil {
		return nil, storeError(ctx, "load conversation", err)
	}

	current := r.initialResponder(conv, question)
	history := exchanges(conv.RecentTurns(r.config.HistoryTurns))

	var (
		chain []handoff.Link
		steps []persistence.Step
	)
	for {
		responder, ok := r.registry.Get(current)
		if !ok {
			return nil, types.NewError(types.ErrResponderFailure, fmt.Sprintf("responder %q is not registered", current))
		}

		r.logger.Debug("dispatch",
			zap.String("conversation_id", conversationID),
			zap.String("responder", current),
			zap.Int("hop", len(chain)))

		out, err := r.dispatch(ctx, responder, handoff.StepInput{
			ConversationID: conversationID,
			Question:       question,
			History:        history,
			Chain:          append([]handoff.Link(nil), chain...),
		})
		if err != nil {
			return nil, err
		}

		if !out.IsHandoff() {
			steps = append(steps, persistence.Step{
				Responder: current,
				Kind:      persistence.StepAnswer,
				Content:   out.Answer,
				At:        r.now().UTC(),
			})
			break
		}

		target := out.Handoff.Target
		if len(chain) >= r.config.MaxHops {
			return nil, types.NewError(types.ErrRoutingExhausted,
				fmt.Sprintf("no answer after %d handoffs (%s -> %s requested)", len(chain), current, target)).
				WithHTTPStatus(types.ConditionRoutingExhausted.HTTPStatus())
		}
		if _, ok := r.registry.Get(target); !ok {
			return nil, types.NewError(types.ErrResponderFailure,
				fmt.Sprintf("%s requested handoff to unknown responder %q", current, target))
		}

		steps = append(steps, persistence.Step{
			Responder: current,
			Kind:      persistence.StepHandoff,
			Target:    target,
			Rationale: out.Handoff.Rationale,
			At:        r.now().UTC(),
		})
		chain = append(chain, handoff.Link{From: current, To: target, Rationale: out.Handoff.Rationale})
		r.metrics.RecordHandoff(current, target)
		r.logger.Debug("handoff",
			zap.String("conversation_id", conversationID),
			zap.String("from", current),
			zap.String("to", target))
		current = target
	}

	answer := steps[len(steps)-1].Content
	turn := persistence.Turn{
		ID:        uuid.New().String(),
		Question:  question,
		Steps:     steps,
		Answer:    answer,
		Responder: current,
		CreatedAt: start.UTC(),
	}
	return &Result{
		ConversationID: conversationID,
		Answer:         answer,
		Responder:      current,
		Turn:           turn,
		BaseVersion:    conv.Version,
		Conversation:   conv.WithTurn(turn, current, r.now().UTC()),
	}, nil
}

// dispatch runs one responder step inside its own span.
func (r *Router) dispatch(ctx context.Context, responder handoff.Responder, in handoff.StepInput) (*handoff.StepResult, error) {
	ctx, span := r.tracer.Start(ctx, "swarm.Dispatch",
		trace.WithAttributes(
			attribute.String("swarm.responder", responder.Name()),
			attribute.Int("swarm.hop", in.Hop()),
		))
	defer span.End()

	out, err := responder.Step(ctx, in)
	if err == nil {
		err = out.Validate()
		if err != nil {
			err = types.WrapError(types.ErrResponderFailure, responder.Name()+" returned an invalid result", err)
		}
	}
	if err != nil {
		err = responderError(ctx, responder.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// initialResponder picks who opens the turn.
func (r *Router) initialResponder(conv *persistence.Conversation, question string) string {
	active := ""
	if conv.ActiveResponder != "" {
		if _, ok := r.registry.Get(conv.ActiveResponder); ok {
			active = conv.ActiveResponder
		}
	}
	if r.config.InitialPolicy == PolicyResume && active != "" {
		return active
	}

	c := r.registry.Classify(question)
	if c.Responder != "" && c.Confidence >= r.config.MinConfidence {
		return c.Responder
	}
	if active != "" {
		return active
	}
	return r.config.DefaultResponder
}

// Commit stores the turn if nobody else committed since it was computed.
func (r *Router) Commit(ctx context.Context, res *Result) (*persistence.Conversation, error) {
	if res == nil {
		return nil, types.NewInvalidInputError("nothing to commit")
	}
	if err := ctx.Err(); err != nil {
		return nil, types.FromContext(err)
	}

	conv, err := r.store.Commit(ctx, res.ConversationID, res.BaseVersion, res.Turn, res.Responder)
	switch {
	case err == nil:
		r.metrics.RecordStoreCommit(r.storeName(), "ok")
		r.logger.Info("turn committed",
			zap.String("conversation_id", res.ConversationID),
			zap.String("responder", res.Responder),
			zap.Int64("version", conv.Version))
		return conv, nil
	case errors.Is(err, persistence.ErrVersionConflict):
		r.metrics.RecordStoreCommit(r.storeName(), "conflict")
		r.logger.Warn("concurrent modification",
			zap.String("conversation_id", res.ConversationID),
			zap.Int64("expected_version", res.BaseVersion))
		return nil, types.WrapError(types.ErrConcurrentModification,
			fmt.Sprintf("conversation %s changed since version %d", res.ConversationID, res.BaseVersion), err).
			WithHTTPStatus(http.StatusConflict)
	default:
		r.metrics.RecordStoreCommit(r.storeName(), "error")
		return nil, storeError(ctx, "commit conversation", err)
	}
}

func (r *Router) storeName() string {
	switch r.store.(type) {
	case *persistence.MemoryConversationStore:
		return string(persistence.StoreTypeMemory)
	case *persistence.FileConversationStore:
		return string(persistence.StoreTypeFile)
	case *persistence.RedisConversationStore:
		return string(persistence.StoreTypeRedis)
	case *persistence.SQLConversationStore:
		return string(persistence.StoreTypeSQL)
	default:
		return "custom"
	}
}

func exchanges(turns []persistence.Turn) []handoff.Exchange {
	out := make([]handoff.Exchange, 0, len(turns))
	for _, t := range turns {
		out = append(out, handoff.Exchange{Question: t.Question, Answer: t.Answer, Responder: t.Responder})
	}
	return out
}

func storeError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return types.FromContext(ctx.Err())
	}
	if errors.Is(err, persistence.ErrInvalidInput) {
		return types.WrapError(types.ErrInvalidInput, op, err).WithHTTPStatus(http.StatusBadRequest)
	}
	return types.NewNotReadyError(op, err)
}

// responderError keeps structured errors and deadlines; anything else is an
// unrecovered responder failure.
func responderError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return types.FromContext(ctx.Err())
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.WrapError(types.ErrResponderFailure, name+" failed", err)
}
