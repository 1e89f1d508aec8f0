package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "lin_api_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "query Viewer { viewer { id } }", body["query"])
		assert.Equal(t, map[string]any{"first": float64(10)}, body["variables"])

		w.Header().Set("X-RateLimit-Remaining", "998")
		w.Header().Set("X-RateLimit-Reset", "1768480000")
		_, _ = w.Write([]byte(`{"data":{"viewer":{"id":"u1"}}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("linear", server.URL, 5*time.Second, WithAuthorization("lin_api_test"))

	resp, err := p.Send(context.Background(), "query Viewer { viewer { id } }", map[string]any{"first": 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"viewer":{"id":"u1"}}`, string(resp.Data))

	remaining, ok := resp.Headers.Get("x-ratelimit-remaining")
	require.True(t, ok)
	assert.Equal(t, "998", remaining)

	health := p.GetHealth()
	assert.True(t, health.Available)
	assert.Zero(t, health.ErrorRate)
}

func TestHTTPProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "rate limited with retry-after",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "30")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantMsg: "rate limited (429), retry after: 30",
		},
		{
			name: "rate limited without retry-after",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantMsg: "rate limited (429)",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream exploded", http.StatusBadGateway)
			},
			wantMsg: "http 502 Bad Gateway: upstream exploded",
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
			wantMsg: "http 401 Unauthorized: bad key",
		},
		{
			name: "graphql errors",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Entity not found"},{"message":"validation failed"}]}`))
			},
			wantMsg: "graphql error: Entity not found; validation failed",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			wantMsg: "parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewHTTPProvider("linear", server.URL, 5*time.Second)
			resp, err := p.Send(context.Background(), "{ viewer { id } }", nil)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, 1.0, p.GetHealth().ErrorRate)
			assert.False(t, p.GetHealth().Available)
		})
	}
}

func TestHTTPProvider_TracksThrottles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("linear", server.URL, 5*time.Second)
	for i := 0; i < 3; i++ {
		_, _ = p.Send(context.Background(), "{ viewer { id } }", nil)
	}

	assert.Equal(t, 3, p.GetHealth().Throttled429)
}

func TestHTTPProvider_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewHTTPProvider("linear", url, time.Second)
	_, err := p.Send(context.Background(), "{ viewer { id } }", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphql request")
}
