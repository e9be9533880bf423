package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, apiURL string) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(nil, client, apiURL, "store-token", 15*time.Minute), mr
}

func TestLookupCachesResult(t *testing.T) {
	t.Parallel()
	var apiHits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiHits.Add(1)
		assert.Equal(t, "/orders/12345", r.URL.Path)
		assert.Equal(t, "Bearer store-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Order{Number: "12345", Status: "paid", Total: "150.00"})
	}))
	defer api.Close()

	svc, mr := newTestService(t, api.URL)

	first, err := svc.Lookup(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "paid", first.Status)
	assert.Equal(t, int32(1), apiHits.Load())

	second, err := svc.Lookup(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), apiHits.Load(), "second lookup must come from cache")

	// Expired cache entries go back to the API.
	mr.FastForward(16 * time.Minute)
	_, err = svc.Lookup(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, int32(2), apiHits.Load())
}

func TestLookupNotFound(t *testing.T) {
	t.Parallel()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer api.Close()

	svc, _ := newTestService(t, api.URL)
	_, err := svc.Lookup(context.Background(), "00000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestLookupAPIUnavailable(t *testing.T) {
	t.Parallel()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	svc, _ := newTestService(t, api.URL)
	_, err := svc.Lookup(context.Background(), "12345")
	assert.ErrorIs(t, err, ErrLookupUnavailable)
}

func TestLookupCorruptCacheFallsThrough(t *testing.T) {
	t.Parallel()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Order{Number: "777", Status: "shipped"})
	}))
	defer api.Close()

	svc, mr := newTestService(t, api.URL)
	require.NoError(t, mr.Set("orders:777", "{not-json"))

	order, err := svc.Lookup(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, "shipped", order.Status)
}

func TestLookupWithoutRedis(t *testing.T) {
	t.Parallel()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Order{Number: "555", Status: "pending"})
	}))
	defer api.Close()

	svc := NewService(nil, nil, api.URL, "", time.Minute)
	order, err := svc.Lookup(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, "pending", order.Status)
}
