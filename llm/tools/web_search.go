package tools

import (
	"context"
	"fmt"
	"strings"
)

// WebSearchProvider defines the interface for web search backends.
type WebSearchProvider interface {
	// Search performs a web search and returns results in relevance order.
	Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error)
	// Name returns the provider name.
	Name() string
}

// WebSearchOptions configures a web search request.
type WebSearchOptions struct {
	MaxResults     int      `json:"max_results"`
	SearchDepth    string   `json:"search_depth,omitempty"` // basic, advanced
	IncludeAnswer  bool     `json:"include_answer,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"` // day, week, month, year
	Domains        []string `json:"domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// DefaultWebSearchOptions returns sensible defaults.
func DefaultWebSearchOptions() WebSearchOptions {
	return WebSearchOptions{
		MaxResults:    5,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
	}
}

// WebSearchResult represents a single search result.
type WebSearchResult struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet"`
	PublishedAt string  `json:"published_at,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// WebSearchAnswer bundles results with the provider's optional summary answer.
type WebSearchAnswer struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer,omitempty"`
	Results []WebSearchResult `json:"results"`
}

// AnswerProvider is implemented by backends that can return a summary answer.
type AnswerProvider interface {
	SearchWithAnswer(ctx context.Context, query string, opts WebSearchOptions) (*WebSearchAnswer, error)
}

// FormatResults renders results as a numbered list for a model prompt.
func FormatResults(answer *WebSearchAnswer) string {
	if answer == nil || (len(answer.Results) == 0 && answer.Answer == "") {
		return "No web results were found."
	}
	var b strings.Builder
	if answer.Answer != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", answer.Answer)
	}
	for i, r := range answer.Results {
		fmt.Fprintf(&b, "[%d] %s\n%s\nSource: %s\n\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return strings.TrimSpace(b.String())
}
