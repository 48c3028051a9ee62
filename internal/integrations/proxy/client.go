package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"chat-widget/internal/domain"
)

const (
	// maxResponseBytes bounds how much of a reply body is read. Larger bodies
	// are rejected with ErrResponseTooLarge instead of being truncated.
	maxResponseBytes = 32 << 20
	maxExcerptBytes  = 256
)

// ErrResponseTooLarge reports a reply body over maxResponseBytes.
var ErrResponseTooLarge = errors.New("proxy: response body too large")

// replyPaths are tried in order; the first non-empty string wins.
var replyPaths = []string{
	"choices.0.message.content",
	"choices.0.text",
}

// chatRequest is the body the completion proxy expects.
type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// ResponseError reports a proxy response whose body was not JSON. The status
// code is carried for diagnostics only.
type ResponseError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("proxy: invalid JSON response (status %d) from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client posts turn lists to a completion proxy.
type Client struct {
	url        string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

func NewClient(proxyURL string, opts ...Option) (*Client, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return nil, errors.New("proxy: url must not be empty")
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("proxy: url %q must be absolute http(s)", proxyURL)
	}
	c := &Client{
		url:        proxyURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

// Complete sends messages in a single POST and returns the assistant text, or
// "" when the response is JSON but carries none.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("proxy: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("proxy: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req)
	if err != nil {
		return "", err
	}
	return ExtractReply(raw), nil
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("proxy: read response body: %w", err)
	}
	if len(buf) > maxResponseBytes {
		return nil, fmt.Errorf("%w: over %d bytes (status %d)", ErrResponseTooLarge, maxResponseBytes, res.StatusCode)
	}
	if !gjson.ValidBytes(buf) {
		return nil, &ResponseError{StatusCode: res.StatusCode, URL: c.url, Body: excerpt(buf, maxExcerptBytes)}
	}
	return buf, nil
}

// excerpt returns at most n bytes of b as valid UTF-8, never splitting a rune.
func excerpt(b []byte, n int) string {
	if len(b) > n {
		cut := n
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		b = b[:cut]
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// ExtractReply resolves the assistant text from a proxy response body.
func ExtractReply(body []byte) string {
	for _, path := range replyPaths {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
