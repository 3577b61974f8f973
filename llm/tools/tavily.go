package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/internal/tlsutil"
	"github.com/BaSui01/agentswarm/llm/providers"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TavilyConfig configures the Tavily search client.
type TavilyConfig struct {
	BaseURL     string
	APIKey      string
	DefaultOpts WebSearchOptions
	Timeout     time.Duration
	// RPS caps outbound requests per second; zero disables limiting.
	RPS float64
}

// TavilyProvider implements WebSearchProvider against the Tavily search API.
type TavilyProvider struct {
	cfg     TavilyConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTavilyProvider creates a Tavily search client.
func NewTavilyProvider(cfg TavilyConfig, logger *zap.Logger) *TavilyProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DefaultOpts.MaxResults == 0 {
		cfg.DefaultOpts = DefaultWebSearchOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &TavilyProvider{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: limiter,
		logger:  logger.With(zap.String("component", "tavily")),
	}
}

// Name returns the provider name.
func (p *TavilyProvider) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeAnswer  bool     `json:"include_answer"`
	IncludeImages  bool     `json:"include_images"`
	IncludeRaw     bool     `json:"include_raw_content"`
	TimeRange      string   `json:"time_range,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search implements WebSearchProvider.
func (p *TavilyProvider) Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error) {
	ans, err := p.SearchWithAnswer(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return ans.Results, nil
}

// SearchWithAnswer runs a search and keeps Tavily's summary answer.
func (p *TavilyProvider) SearchWithAnswer(ctx context.Context, query string, opts WebSearchOptions) (*WebSearchAnswer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewInvalidInputError("search query is required")
	}
	opts = p.mergeOptions(opts)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, types.FromContext(ctx.Err())
			}
			// Wait 在预计超出截止时间时提前返回
			return nil, types.NewTimeoutError("search rate limit wait exceeds deadline", err)
		}
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:         p.cfg.APIKey,
		Query:          query,
		MaxResults:     opts.MaxResults,
		SearchDepth:    opts.SearchDepth,
		IncludeAnswer:  opts.IncludeAnswer,
		TimeRange:      opts.TimeRange,
		IncludeDomains: opts.Domains,
		ExcludeDomains: opts.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	providers.BearerTokenHeaders(req, p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, providers.TransportError(fmt.Errorf("decode search response: %w", err), p.Name())
	}

	out := &WebSearchAnswer{Query: query, Answer: tr.Answer}
	for _, r := range tr.Results {
		out.Results = append(out.Results, WebSearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Content,
			Score:       r.Score,
			PublishedAt: r.PublishedDate,
		})
		if len(out.Results) == opts.MaxResults {
			break
		}
	}

	p.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(out.Results)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func (p *TavilyProvider) mergeOptions(opts WebSearchOptions) WebSearchOptions {
	def := p.cfg.DefaultOpts
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.SearchDepth == "" {
		opts.SearchDepth = def.SearchDepth
	}
	if !opts.IncludeAnswer {
		opts.IncludeAnswer = def.IncludeAnswer
	}
	if len(opts.Domains) == 0 {
		opts.Domains = def.Domains
	}
	if len(opts.ExcludeDomains) == 0 {
		opts.ExcludeDomains = def.ExcludeDomains
	}
	return opts
}
