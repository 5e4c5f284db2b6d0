package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kalambet/ragroute/internal/api"
	"github.com/kalambet/ragroute/internal/config"
	"github.com/kalambet/ragroute/internal/router"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:   cfg.Server.APIToken,
		// Answers wait on the model and possibly a web search.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `ragroute serve` running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// ask sends one question. ok is false when the server ignored an empty query.
func (c *apiClient) ask(ctx context.Context, sessionID, query string) (turn router.Turn, ok bool, err error) {
	resp, err := c.post(ctx, "/v1/ask", api.AskRequest{SessionID: sessionID, Query: query})
	if err != nil {
		return router.Turn{}, false, err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return router.Turn{}, false, nil
	}
	if err := decodeJSON(resp, &turn); err != nil {
		return router.Turn{}, false, err
	}
	return turn, true, nil
}

type sessionHistory struct {
	SessionID string           `json:"session_id"`
	Messages  []router.Message `json:"messages"`
}

func (c *apiClient) session(ctx context.Context, id string) (sessionHistory, error) {
	var out sessionHistory
	resp, err := c.get(ctx, "/v1/sessions/"+url.PathEscape(id))
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

func (c *apiClient) deleteSession(ctx context.Context, id string) error {
	resp, err := c.delete(ctx, "/v1/sessions/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent)
}

func (c *apiClient) healthy(ctx context.Context) bool {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func expectStatus(resp *http.Response, code int) error {
	defer resp.Body.Close()
	if resp.StatusCode != code {
		return responseError(resp)
	}
	return nil
}

// responseError turns an API error body into an error, preferring the
// message field of {"error":{"message":...}}.
func responseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
}

type reindexResult struct {
	Fingerprint string `json:"fingerprint"`
	Chunks      int    `json:"chunks"`
	DurationMS  int64  `json:"duration_ms"`
}

func (c *apiClient) reindex(ctx context.Context) (reindexResult, error) {
	var out reindexResult
	resp, err := c.post(ctx, "/v1/index", nil)
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}
