package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"chat-widget/internal/domain"
)

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_ValidatesURL(t *testing.T) {
	for _, bad := range []string{"", "  ", "ftp://example.com", "/relative", "http://"} {
		_, err := NewClient(bad)
		require.Error(t, err, "url=%q", bad)
	}

	c, err := NewClient(" https://worker.example.dev/ ")
	require.NoError(t, err)
	require.Equal(t, "https://worker.example.dev/", c.url)
	require.Zero(t, c.httpClient.Timeout)
}

func TestNewClient_WithTimeout(t *testing.T) {
	c, err := NewClient("https://worker.example.dev/", WithTimeout(3*time.Second))
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, c.httpClient.Timeout)
}

// ---------------------------------------------------------------------------
// ExtractReply
// ---------------------------------------------------------------------------

func TestExtractReply(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message content", `{"choices":[{"message":{"content":"X"}}]}`, "X"},
		{"text field", `{"choices":[{"text":"Y"}]}`, "Y"},
		{"content wins over text", `{"choices":[{"message":{"content":"X"},"text":"Y"}]}`, "X"},
		{"empty content falls to text", `{"choices":[{"message":{"content":""},"text":"Y"}]}`, "Y"},
		{"neither field", `{"choices":[{}]}`, ""},
		{"no choices", `{"error":"nope"}`, ""},
		{"empty choices", `{"choices":[]}`, ""},
		{"non-string content", `{"choices":[{"message":{"content":42}}]}`, ""},
		{"only first choice", `{"choices":[{},{"text":"second"}]}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractReply([]byte(tc.body)))
		})
	}
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func TestClient_Complete_HappyPath(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello from mock"}}]
		}`))
	}))
	defer srv.Close()

	msgs := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "hi"},
	}
	reply, err := newTestClient(t, srv).Complete(context.Background(), msgs)
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", reply)
	require.Equal(t, msgs, got.Messages)
}

func TestClient_Complete_MissingFieldsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv).Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, reply)
}

func TestClient_Complete_StatusCodeIsNotBranchedOn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv).Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, reply)
}

func TestClient_Complete_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), nil)
	require.Error(t, err)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, http.StatusBadGateway, respErr.StatusCode)
	require.Contains(t, err.Error(), "invalid JSON")
	require.Contains(t, err.Error(), "bad gateway")
}

func TestClient_Complete_LargeReplyIsNotTruncated(t *testing.T) {
	long := strings.Repeat("é", 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": long}}},
		})
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv).Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, long, reply)
}

func TestClient_Complete_InvalidJSONExcerptIsValidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("x" + strings.Repeat("日本", 200)))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), nil)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.True(t, utf8.ValidString(err.Error()))
	require.LessOrEqual(t, len(respErr.Body), maxExcerptBytes)
	require.True(t, strings.HasPrefix(respErr.Body, "x日本"))
}

func TestExcerpt(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abc", 3, "abc"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"backs off mid rune", "aé", 2, "a"},
		{"keeps whole rune", "aé", 3, "aé"},
		{"invalid bytes replaced", "a\xffb", 10, "a\uFFFDb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, excerpt([]byte(tc.in), tc.n))
		})
	}
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), nil)
	require.Error(t, err)
}

func TestClient_Complete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, srv).Complete(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}
