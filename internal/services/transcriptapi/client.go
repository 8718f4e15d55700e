package transcriptapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/podletter/newsletter-api/internal/services/cache"
)

// Provider looks up transcript text for an episode from the primary
// transcript API, keyed by feed URL and episode GUID.
type Provider interface {
	Lookup(ctx context.Context, feedURL, guid string) (*Result, error)
}

// Config holds configuration for the transcript API client
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	RateLimit int // requests per second, 0 disables limiting
	CacheTTL  time.Duration
}

// Client handles communication with the transcript provider API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
}

// Ensure Client implements Provider
var _ Provider = (*Client)(nil)

// NewClient creates a new transcript provider client
func NewClient(cfg Config, c cache.Cache) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PodletterAPI/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		limiter:    limiter,
		cache:      c,
		cacheTTL:   cfg.CacheTTL,
	}
}

// lookupResponse is the provider's wire format
type lookupResponse struct {
	Status    string `json:"status"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Lookup fetches the transcript result for one episode. Provider-side
// failures are returned as KindError results, not Go errors; only
// request-construction and context failures surface as errors.
func (c *Client) Lookup(ctx context.Context, feedURL, guid string) (*Result, error) {
	if feedURL == "" || guid == "" {
		return nil, fmt.Errorf("feed URL and GUID are required for transcript lookup")
	}

	cacheKey := fmt.Sprintf("transcript:%s:%s", feedURL, guid)
	if c.cache != nil {
		if data, found := c.cache.Get(ctx, cacheKey); found {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				log.Printf("[DEBUG] Transcript lookup cache hit for guid %s", guid)
				return &cached, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	params := url.Values{}
	params.Set("feed_url", feedURL)
	params.Set("guid", guid)
	fullURL := fmt.Sprintf("%s/transcripts/lookup?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Result{Kind: KindError, Err: fmt.Sprintf("executing request: %v", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &Result{Kind: KindError, Err: "API returned status 429 too many requests"}, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return &Result{Kind: KindNotFound}, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[ERROR] Transcript API returned status %d for guid %s", resp.StatusCode, guid)
		return &Result{Kind: KindError, Err: fmt.Sprintf("API returned status %d", resp.StatusCode)}, nil
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &Result{Kind: KindError, Err: fmt.Sprintf("decoding response: %v", err)}, nil
	}

	result := c.toResult(&body)
	if !result.Kind.Valid() {
		return &Result{Kind: KindError, Err: fmt.Sprintf("unknown provider status %q", body.Status)}, nil
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if data, err := json.Marshal(result); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
		}
	}

	return result, nil
}

// toResult maps the wire response into a tagged Result
func (c *Client) toResult(body *lookupResponse) *Result {
	result := &Result{
		Kind:      Kind(body.Status),
		Text:      body.Text,
		WordCount: body.WordCount,
	}
	if body.Error.Message != "" {
		result.Err = body.Error.Message
		if body.Error.Code != "" {
			result.Err = fmt.Sprintf("%s: %s", body.Error.Code, body.Error.Message)
		}
	}
	return result
}
