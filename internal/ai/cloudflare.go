package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// catalogTimeout bounds the advisory model catalog fetch. Listing is not
// worth stalling a request over.
const catalogTimeout = 2 * time.Second

// Client talks to the Cloudflare Workers AI REST API.
type Client struct {
	client    *http.Client
	baseURL   string
	accountID string
	apiToken  string
}

// NewClient creates a Workers AI client for the given account.
func NewClient(baseURL, accountID, apiToken string) *Client {
	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 120 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		apiToken:  apiToken,
	}
}

// runEnvelope is the JSON envelope Workers AI wraps non-binary results in.
type runEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Run invokes a model. JSON responses are decoded into an object result,
// event streams are handed back undrained, and binary bodies (generated
// images) are handed back as a stream for the caller to collect.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (Result, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return Result{}, fmt.Errorf("marshal model input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("run model %s: %w", model, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("model %s returned %d: %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/event-stream"):
		return StreamResult(resp.Body), nil
	case strings.HasPrefix(contentType, "application/json"):
		defer resp.Body.Close()
		var envelope runEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return Result{}, fmt.Errorf("decode model response: %w", err)
		}
		if !envelope.Success {
			if len(envelope.Errors) > 0 {
				return Result{}, fmt.Errorf("model %s failed: %s", model, envelope.Errors[0].Message)
			}
			return Result{}, fmt.Errorf("model %s failed", model)
		}
		var obj map[string]any
		if err := json.Unmarshal(envelope.Result, &obj); err != nil {
			return Result{}, fmt.Errorf("decode model result: %w", err)
		}
		return ObjectResult(obj), nil
	default:
		// Binary output (image bytes). Hand the stream back undrained.
		return StreamResult(resp.Body), nil
	}
}

// searchResponse mirrors the catalog search envelope.
type searchResponse struct {
	Result []CatalogModel `json:"result"`
}

// ListModels fetches the text generation model catalog. The call is bounded
// by a short timeout; callers treat failures as an empty catalog.
func (c *Client) ListModels(ctx context.Context) ([]CatalogModel, error) {
	if c.accountID == "" || c.apiToken == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	query := url.Values{
		"hide_experimental": {"false"},
		"search":            {"Text Generation"},
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/ai/models/search?%s", c.baseURL, c.accountID, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model catalog returned %d", resp.StatusCode)
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decode model catalog: %w", err)
	}
	return search.Result, nil
}
