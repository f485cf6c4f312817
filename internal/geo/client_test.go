package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Resolve(t *testing.T) {
	t.Run("resolves a public address", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/8.8.8.8", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"success","country":"United States"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL})
		country, err := client.Resolve(context.Background(), "8.8.8.8")

		require.NoError(t, err)
		assert.Equal(t, "United States", country)
	})

	t.Run("skips private and loopback addresses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("lookup service should not be called")
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL})

		for _, ip := range []string{"127.0.0.1", "10.0.0.5", "192.168.1.1", "::1"} {
			country, err := client.Resolve(context.Background(), ip)
			require.NoError(t, err)
			assert.Empty(t, country, "ip %s", ip)
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://unused"})

		_, err := client.Resolve(context.Background(), "not-an-ip")
		require.Error(t, err)
	})

	t.Run("reports lookup failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.Resolve(context.Background(), "8.8.8.8")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reserved range")
	})

	t.Run("reports non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL})
		_, err := client.Resolve(context.Background(), "8.8.8.8")

		require.Error(t, err)
	})
}

func TestNoopResolver(t *testing.T) {
	country, err := NoopResolver{}.Resolve(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Empty(t, country)
}
