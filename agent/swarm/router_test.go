package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/agent/handoff"
	"github.com/BaSui01/agentswarm/agent/persistence"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/testutil"
	"github.com/BaSui01/agentswarm/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// scriptedResponder implements handoff.Responder with a step callback.
type scriptedResponder struct {
	name     string
	keywords []string
	stepFn   func(ctx context.Context, in handoff.StepInput) (*handoff.StepResult, error)
	calls    atomic.Int64
}

func (s *scriptedResponder) Name() string { return s.name }

func (s *scriptedResponder) Capabilities() []handoff.Capability {
	return []handoff.Capability{{Name: s.name, Keywords: s.keywords, Priority: 1}}
}

func (s *scriptedResponder) Step(ctx context.Context, in handoff.StepInput) (*handoff.StepResult, error) {
	s.calls.Add(1)
	if s.stepFn != nil {
		return s.stepFn(ctx, in)
	}
	return handoff.Answered(s.name + " answer"), nil
}

func answers(text string) func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
	return func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
		return handoff.Answered(text), nil
	}
}

func handsOff(target string) func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
	return func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
		return handoff.HandoffTo(target, "not mine"), nil
	}
}

type fixture struct {
	doc    *scriptedResponder
	search *scriptedResponder
	store  *persistence.MemoryConversationStore
	router *Router
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		doc: &scriptedResponder{
			name:     "DocumentResponder",
			keywords: []string{"candidate", "skills", "languages", "experience"},
		},
		search: &scriptedResponder{
			name:     "SearchResponder",
			keywords: []string{"news", "latest", "current", "trends"},
		},
		store: persistence.NewMemoryConversationStore(),
	}
	reg := handoff.NewRegistry(zap.NewNop())
	require.NoError(t, reg.Register(f.doc))
	require.NoError(t, reg.Register(f.search))

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRouter(reg, f.store, cfg, zap.NewNop(), WithMetrics(metrics.NewCollector("swarm_test", nil)))
	require.NoError(t, err)
	f.router = r
	return f
}

func (f *fixture) load(t *testing.T, id string) *persistence.Conversation {
	t.Helper()
	conv, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	return conv
}

// =============================================================================
// 🧪 构造与配置
// =============================================================================

func TestNewRouter_Validation(t *testing.T) {
	reg := handoff.NewRegistry(nil)
	store := persistence.NewMemoryConversationStore()

	_, err := NewRouter(nil, store, DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = NewRouter(reg, store, DefaultConfig(), nil)
	assert.Error(t, err, "default responder must be registered")

	require.NoError(t, reg.Register(&scriptedResponder{name: "DocumentResponder"}))
	bad := DefaultConfig()
	bad.InitialPolicy = "random"
	_, err = NewRouter(reg, store, bad, nil)
	assert.Error(t, err)

	_, err = NewRouter(reg, store, DefaultConfig(), nil)
	assert.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"negative hops":    func(c *Config) { c.MaxHops = -1 },
		"negative timeout": func(c *Config) { c.TurnTimeout = -time.Second },
		"no default":       func(c *Config) { c.DefaultResponder = "" },
		"bad policy":       func(c *Config) { c.InitialPolicy = "sticky" },
		"confidence":       func(c *Config) { c.MinConfidence = 1.5 },
		"history":          func(c *Config) { c.HistoryTurns = -2 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

// =============================================================================
// 🧪 路由
// =============================================================================

func TestRouter_FirstTurnClassifies(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.router.Run(context.Background(), "c1", "What is the latest news?")
	require.NoError(t, err)
	assert.Equal(t, "SearchResponder", resp.AgentName)
	assert.Equal(t, "SearchResponder answer", resp.Content)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, int64(0), f.doc.calls.Load())
}

func TestRouter_FirstTurnFallsBackToDefault(t *testing.T) {
	f := newFixture(t, nil)

	// 无关键词命中
	resp, err := f.router.Run(context.Background(), "c1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "DocumentResponder", resp.AgentName)

	// 平局
	resp, err = f.router.Run(context.Background(), "c2", "candidate news")
	require.NoError(t, err)
	assert.Equal(t, "DocumentResponder", resp.AgentName)
}

func TestRouter_ResumePolicyKeepsActiveResponder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.router.Run(ctx, "c1", "What is the latest news?")
	require.NoError(t, err)

	// 第二轮虽然命中文档关键词，resume 策略仍从上一个活跃应答者开始
	resp, err := f.router.Run(ctx, "c1", "What languages does the candidate know?")
	require.NoError(t, err)
	assert.Equal(t, "SearchResponder", resp.AgentName)
	assert.Equal(t, int64(2), resp.Version)
}

func TestRouter_ReclassifyPolicy(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.InitialPolicy = PolicyReclassify })
	ctx := context.Background()

	_, err := f.router.Run(ctx, "c1", "What is the latest news?")
	require.NoError(t, err)

	resp, err := f.router.Run(ctx, "c1", "What languages does the candidate know?")
	require.NoError(t, err)
	assert.Equal(t, "DocumentResponder", resp.AgentName)

	// 低置信度时回退到上一个活跃应答者而不是默认应答者
	f.doc.stepFn = handsOff("SearchResponder")
	_, err = f.router.Run(ctx, "c1", "anything else")
	require.NoError(t, err)
	conv := f.load(t, "c1")
	assert.Equal(t, "SearchResponder", conv.ActiveResponder)

	resp, err = f.router.Run(ctx, "c1", "hmm")
	require.NoError(t, err)
	assert.Equal(t, "SearchResponder", resp.AgentName)
}

func TestRouter_HandoffIsRecordedInTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.doc.stepFn = handsOff("SearchResponder")
	f.search.stepFn = func(_ context.Context, in handoff.StepInput) (*handoff.StepResult, error) {
		require.Len(t, in.Chain, 1)
		assert.Equal(t, "DocumentResponder", in.Chain[0].From)
		assert.Equal(t, "not mine", in.Chain[0].Rationale)
		return handoff.Answered("from the web"), nil
	}

	resp, err := f.router.Run(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SearchResponder", resp.AgentName)
	assert.Equal(t, "from the web", resp.Content)

	conv := f.load(t, "c1")
	require.Len(t, conv.Turns, 1)
	turn := conv.Turns[0]
	require.Len(t, turn.Steps, 2)
	assert.Equal(t, persistence.StepHandoff, turn.Steps[0].Kind)
	assert.Equal(t, "SearchResponder", turn.Steps[0].Target)
	assert.Equal(t, persistence.StepAnswer, turn.Steps[1].Kind)
	assert.Equal(t, "from the web", turn.Answer)
	assert.Equal(t, "SearchResponder", conv.ActiveResponder)
	assert.Equal(t, 1, turn.Hops())
}

func TestRouter_HistoryIsPassedToResponders(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.HistoryTurns = 2 })
	ctx := context.Background()

	var seen []handoff.Exchange
	f.doc.stepFn = func(_ context.Context, in handoff.StepInput) (*handoff.StepResult, error) {
		seen = in.History
		return handoff.Answered("answer to " + in.Question), nil
	}
	for i := 1; i <= 3; i++ {
		_, err := f.router.Run(ctx, "c1", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}
	require.Len(t, seen, 2)
	assert.Equal(t, "question 1", seen[0].Question)
	assert.Equal(t, "answer to question 2", seen[1].Answer)
	assert.Equal(t, "DocumentResponder", seen[1].Responder)
}

// =============================================================================
// 🧪 失败路径：对话保持不变
// =============================================================================

func TestRouter_RoutingExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.doc.stepFn = handsOff("SearchResponder")
	f.search.stepFn = handsOff("DocumentResponder")

	_, err := f.router.Run(context.Background(), "c1", "ping pong")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrRoutingExhausted))
	assert.Equal(t, types.ConditionRoutingExhausted, types.ConditionOf(err))

	// MaxHops=3：4 次调用，第 4 次的转交请求被拒绝
	assert.Equal(t, int64(4), f.doc.calls.Load()+f.search.calls.Load())
	assert.Equal(t, int64(0), f.load(t, "c1").Version)
}

func TestRouter_ZeroHopsAllowsNoHandoff(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxHops = 0 })
	f.doc.stepFn = handsOff("SearchResponder")

	_, err := f.router.Run(context.Background(), "c1", "hello")
	assert.True(t, types.IsErrorCode(err, types.ErrRoutingExhausted))
	assert.Equal(t, int64(0), f.search.calls.Load())
}

func TestRouter_ResponderFailures(t *testing.T) {
	tests := []struct {
		name string
		step func(context.Context, handoff.StepInput) (*handoff.StepResult, error)
		code types.ErrorCode
	}{
		{"unknown target", handsOff("PlannerResponder"), types.ErrResponderFailure},
		{"plain error", func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
			return nil, errors.New("boom")
		}, types.ErrResponderFailure},
		{"invalid result", func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
			return nil, nil
		}, types.ErrResponderFailure},
		{"structured error kept", func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
			return nil, types.NewError(types.ErrCollectionNotReady, "not built").WithRetryable(true)
		}, types.ErrCollectionNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.doc.stepFn = tt.step

			_, err := f.router.Run(context.Background(), "c1", "hello")
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			assert.Equal(t, types.ConditionNotReady, types.ConditionOf(err))
			assert.Equal(t, int64(0), f.load(t, "c1").Version)
		})
	}
}

func TestRouter_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.router.Run(context.Background(), "c1", "   ")
	assert.Equal(t, types.ConditionInvalidInput, types.ConditionOf(err))

	_, err = f.router.Run(context.Background(), "", "hello")
	assert.Equal(t, types.ConditionInvalidInput, types.ConditionOf(err))

	assert.Equal(t, int64(0), f.doc.calls.Load()+f.search.calls.Load())
}

func TestRouter_TimeoutCommitsNothing(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.TurnTimeout = 30 * time.Millisecond })
	f.doc.stepFn = func(ctx context.Context, _ handoff.StepInput) (*handoff.StepResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.router.Run(context.Background(), "c1", "hello")
	require.Error(t, err)
	assert.Equal(t, types.ConditionUpstreamTimeout, types.ConditionOf(err))
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamTimeout))
	assert.Equal(t, int64(0), f.load(t, "c1").Version)
}

func TestRouter_CommitAfterDeadlineIsRefused(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.router.Handle(context.Background(), "c1", "hello")
	require.NoError(t, err)

	_, err = f.router.Commit(testutil.CancelledContext(), res)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamTimeout))
	assert.Equal(t, int64(0), f.load(t, "c1").Version)
}

type failingStore struct {
	persistence.ConversationStore
}

func (failingStore) Load(context.Context, string) (*persistence.Conversation, error) {
	return nil, errors.New("connection refused")
}

func TestRouter_StoreUnavailable(t *testing.T) {
	reg := handoff.NewRegistry(nil)
	require.NoError(t, reg.Register(&scriptedResponder{name: "DocumentResponder"}))
	r, err := NewRouter(reg, failingStore{}, DefaultConfig(), nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "c1", "hello")
	assert.True(t, types.IsErrorCode(err, types.ErrNotReady))
	assert.True(t, types.IsRetryable(err))
}

// =============================================================================
// 🧪 并发：版本冲突不会被静默覆盖
// =============================================================================

func TestRouter_HandleDoesNotCommit(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.router.Handle(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.BaseVersion)
	assert.Equal(t, int64(1), res.Conversation.Version)
	assert.Len(t, res.Conversation.Turns, 1)
	assert.Equal(t, int64(0), f.load(t, "c1").Version)

	conv, err := f.router.Commit(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, res.Conversation.Version, conv.Version)
	assert.Equal(t, res.Turn.ID, conv.Turns[0].ID)
}

func TestRouter_ConcurrentModification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.router.Handle(ctx, "c1", "first")
	require.NoError(t, err)
	second, err := f.router.Handle(ctx, "c1", "second")
	require.NoError(t, err)

	_, err = f.router.Commit(ctx, first)
	require.NoError(t, err)

	_, err = f.router.Commit(ctx, second)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConcurrentModification))
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
	assert.Equal(t, types.ConditionNotReady, types.ConditionOf(err))

	conv := f.load(t, "c1")
	assert.Equal(t, int64(1), conv.Version)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, "first", conv.Turns[0].Question)
}

func TestRouter_ParallelRunsKeepVersionOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		versions  []int64
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.router.Run(ctx, "c1", fmt.Sprintf("q%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if types.IsErrorCode(err, types.ErrConcurrentModification) {
					conflicts++
				}
				return
			}
			versions = append(versions, resp.Version)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, writers, len(versions)+conflicts)
	conv := f.load(t, "c1")
	assert.Equal(t, int64(len(versions)), conv.Version)
	assert.Len(t, conv.Turns, len(versions))

	seen := make(map[int64]bool)
	for _, v := range versions {
		assert.False(t, seen[v], "version %d observed twice", v)
		seen[v] = true
	}
}

// =============================================================================
// 🧪 属性测试：每轮的转交次数有上限
// =============================================================================

func TestProperty_HandoffTermination(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a turn ends within max_hops handoffs", prop.ForAll(
		func(maxHops int, script []bool) bool {
			f := newFixture(t, func(c *Config) { c.MaxHops = maxHops })

			// script[i] 为 true 表示第 i 次调用请求转交
			var call atomic.Int64
			step := func(self, other string) func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
				return func(context.Context, handoff.StepInput) (*handoff.StepResult, error) {
					i := int(call.Add(1)) - 1
					if i < len(script) && script[i] {
						return handoff.HandoffTo(other, "scripted"), nil
					}
					return handoff.Answered(self), nil
				}
			}
			f.doc.stepFn = step("DocumentResponder", "SearchResponder")
			f.search.stepFn = step("SearchResponder", "DocumentResponder")

			res, err := f.router.Handle(context.Background(), "c", "hello")
			calls := int(call.Load())
			if calls > maxHops+1 {
				return false
			}

			leading := 0
			for leading < len(script) && script[leading] {
				leading++
			}
			if leading > maxHops {
				return err != nil && types.IsErrorCode(err, types.ErrRoutingExhausted) && calls == maxHops+1
			}
			return err == nil &&
				res.Turn.Hops() == leading &&
				len(res.Turn.Steps) == leading+1 &&
				calls == leading+1
		},
		gen.IntRange(0, 5),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
