package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/ragroute/internal/engine"
)

const (
	DefaultBaseURL    = "https://api.tavily.com"
	DefaultMaxResults = 5
	DefaultDepth      = "advanced"
	defaultTimeout    = 60 * time.Second
)

// Result is one web page returned by the search.
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score"`
}

// ResultSet is everything a single search returned.
type ResultSet struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
	Images  []string `json:"images,omitempty"`
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Depth      string
	// Timeout bounds one search request. Zero means 60s.
	Timeout time.Duration
}

// Client queries the Tavily search API.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	depth      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. An API key is required; the remaining options
// fall back to their defaults when zero.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("web search requires a Tavily API key (set TAVILY_API_KEY)")
	}
	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxResults: opts.MaxResults,
		depth:      opts.Depth,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     slog.Default(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxResults <= 0 {
		c.maxResults = DefaultMaxResults
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = defaultTimeout
	}
	if c.depth == "" {
		c.depth = DefaultDepth
	}
	return c, nil
}

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

// searchResponse tolerates images given either as URLs or as objects.
type searchResponse struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer"`
	Results []Result          `json:"results"`
	Images  []json.RawMessage `json:"images"`
}

// Search runs one web search for query. The result list is capped at the
// configured maximum and returned in the order the API ranked it.
func (c *Client) Search(ctx context.Context, query string) (*ResultSet, error) {
	body, err := json.Marshal(searchRequest{
		Query:             query,
		SearchDepth:       c.depth,
		MaxResults:        c.maxResults,
		IncludeAnswer:     true,
		IncludeRawContent: true,
		IncludeImages:     true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search: %w", &engine.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	set := &ResultSet{Query: sr.Query, Answer: sr.Answer, Results: sr.Results}
	if set.Query == "" {
		set.Query = query
	}
	if len(set.Results) > c.maxResults {
		set.Results = set.Results[:c.maxResults]
	}
	for i := range set.Results {
		set.Results[i].RawContent = CleanHTML(set.Results[i].RawContent)
	}
	set.Images = decodeImages(sr.Images)

	c.logger.Debug("web search", "results", len(set.Results), "duration_ms", time.Since(start).Milliseconds())
	return set, nil
}

func decodeImages(raw []json.RawMessage) []string {
	var urls []string
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil {
			urls = append(urls, s)
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(r, &obj) == nil && obj.URL != "" {
			urls = append(urls, obj.URL)
		}
	}
	return urls
}
