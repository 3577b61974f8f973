package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentswarm/llm/tools"
)

// StaticSearch 返回固定结果的 WebSearchProvider，记录查询
type StaticSearch struct {
	mu      sync.Mutex
	answer  string
	results []tools.WebSearchResult
	err     error
	queries []string
	options []tools.WebSearchOptions
}

// NewStaticSearch 创建返回给定结果的搜索桩
func NewStaticSearch(results ...tools.WebSearchResult) *StaticSearch {
	return &StaticSearch{results: results}
}

// WithAnswer 设置摘要答案
func (s *StaticSearch) WithAnswer(answer string) *StaticSearch {
	s.answer = answer
	return s
}

// WithError 设置返回的错误
func (s *StaticSearch) WithError(err error) *StaticSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *StaticSearch) Name() string { return "static" }

// Search 实现 tools.WebSearchProvider
func (s *StaticSearch) Search(ctx context.Context, query string, opts tools.WebSearchOptions) ([]tools.WebSearchResult, error) {
	ans, err := s.SearchWithAnswer(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return ans.Results, nil
}

// SearchWithAnswer 实现 tools.AnswerProvider
func (s *StaticSearch) SearchWithAnswer(ctx context.Context, query string, opts tools.WebSearchOptions) (*tools.WebSearchAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.options = append(s.options, opts)
	if s.err != nil {
		return nil, s.err
	}
	results := s.results
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return &tools.WebSearchAnswer{Query: query, Answer: s.answer, Results: results}, nil
}

// Queries 返回收到的查询
func (s *StaticSearch) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Options 返回每次查询收到的搜索选项
func (s *StaticSearch) Options() []tools.WebSearchOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tools.WebSearchOptions(nil), s.options...)
}
