package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CacheHandle identifies a provider-managed cached context resource.
type CacheHandle struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// CachedContext describes a live cache entry's lifecycle metadata.
type CachedContext struct {
	Handle     CacheHandle
	CreatedAt  time.Time
	ExpiresAt  time.Time
	TokenCount int
}

// Expired reports whether the cache entry has passed its expiration time.
func (c CachedContext) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// CacheNotFoundError is returned when a cache handle no longer resolves to
// a live resource on the provider side.
type CacheNotFoundError struct {
	Handle CacheHandle
}

func (e *CacheNotFoundError) Error() string {
	return fmt.Sprintf("context cache: %s/%s not found", e.Handle.Provider, e.Handle.Name)
}

// CacheExpiredError is returned when refreshing a cache that the provider
// has already expired.
type CacheExpiredError struct {
	Handle CacheHandle
}

func (e *CacheExpiredError) Error() string {
	return fmt.Sprintf("context cache: %s/%s expired", e.Handle.Provider, e.Handle.Name)
}

// ContextCache manages provider-side cached content, letting a caller reuse
// a large, unchanging prefix (system instructions, repo context) across many
// requests without re-billing input tokens each time.
type ContextCache interface {
	CreateCache(ctx context.Context, content string, ttl time.Duration) (CacheHandle, error)
	GetCache(ctx context.Context, handle CacheHandle) (*CachedContext, error)
	RefreshCache(ctx context.Context, handle CacheHandle, ttl time.Duration) error
	DeleteCache(ctx context.Context, handle CacheHandle) error
}

// GeminiContextCache implements ContextCache against Gemini's cachedContents
// REST API.
type GeminiContextCache struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGeminiContextCache constructs a GeminiContextCache. baseURL defaults to
// the public Gemini API endpoint when empty.
func NewGeminiContextCache(apiKey, baseURL, model string) *GeminiContextCache {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "models/gemini-1.5-pro"
	}
	return &GeminiContextCache{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createCachedContentRequest struct {
	Model    string          `json:"model"`
	Contents []cacheContent  `json:"contents"`
	TTL      string          `json:"ttl,omitempty"`
}

type cacheContent struct {
	Role  string     `json:"role"`
	Parts []cachePart `json:"parts"`
}

type cachePart struct {
	Text string `json:"text"`
}

type cachedContentResponse struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime"`
	ExpireTime string `json:"expireTime"`
	Usage      *struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiContextCache) CreateCache(ctx context.Context, content string, ttl time.Duration) (CacheHandle, error) {
	reqBody := createCachedContentRequest{
		Model:    c.model,
		Contents: []cacheContent{{Role: "user", Parts: []cachePart{{Text: content}}}},
		TTL:      fmt.Sprintf("%ds", int(ttl.Seconds())),
	}
	var resp cachedContentResponse
	url := fmt.Sprintf("%s/cachedContents?key=%s", c.baseURL, c.apiKey)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &resp); err != nil {
		return CacheHandle{}, fmt.Errorf("create cache: %w", err)
	}
	return CacheHandle{Provider: "gemini", Name: resp.Name}, nil
}

func (c *GeminiContextCache) GetCache(ctx context.Context, handle CacheHandle) (*CachedContext, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, handle.Name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get cache: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if httpResp.StatusCode >= 300 {
		io.Copy(io.Discard, httpResp.Body)
		return nil, &CacheNotFoundError{Handle: handle}
	}

	var resp cachedContentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode cache response: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpireTime)
	if err != nil {
		return nil, fmt.Errorf("parse expire_time: %w", err)
	}
	tokenCount := 0
	if resp.Usage != nil {
		tokenCount = resp.Usage.TotalTokenCount
	}

	return &CachedContext{
		Handle:     handle,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		TokenCount: tokenCount,
	}, nil
}

func (c *GeminiContextCache) RefreshCache(ctx context.Context, handle CacheHandle, ttl time.Duration) error {
	cached, err := c.GetCache(ctx, handle)
	if err != nil {
		return err
	}
	if cached == nil {
		return &CacheNotFoundError{Handle: handle}
	}
	if cached.Expired() {
		return &CacheExpiredError{Handle: handle}
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, handle.Name, c.apiKey)
	body := map[string]string{"ttl": fmt.Sprintf("%ds", int(ttl.Seconds()))}
	var resp cachedContentResponse
	if err := c.doJSON(ctx, http.MethodPatch, url, body, &resp); err != nil {
		return fmt.Errorf("refresh cache: %w", err)
	}
	return nil
}

func (c *GeminiContextCache) DeleteCache(ctx context.Context, handle CacheHandle) error {
	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, handle.Name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete cache failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *GeminiContextCache) doJSON(ctx context.Context, method, url string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(errBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
