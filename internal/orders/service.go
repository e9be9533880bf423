// Package orders looks up e-commerce orders by number, caching results in
// redis so repeated customer queries don't hammer the store API.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "orders:"

// Order is the subset of the store API's order payload the bot needs.
type Order struct {
	Number       string    `json:"number"`
	Status       string    `json:"status"`
	Total        string    `json:"total"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service resolves order numbers against the store API through a redis
// read-through cache.
type Service struct {
	redis      *redis.Client
	httpClient *http.Client
	baseURL    string
	token      string
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewService creates an order lookup service.
func NewService(log *slog.Logger, redisClient *redis.Client, baseURL, token string, cacheTTL time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		redis:      redisClient,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		cacheTTL:   cacheTTL,
		logger:     log.With(slog.String("service", "orders")),
	}
}

// Lookup returns the order for the given number, from cache when possible.
// Cache failures degrade to a direct API call; they never fail the lookup.
func (s *Service) Lookup(ctx context.Context, orderNumber string) (Order, error) {
	key := cacheKeyPrefix + orderNumber

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var order Order
			if jsonErr := json.Unmarshal([]byte(cached), &order); jsonErr == nil {
				return order, nil
			}
			// Corrupt cache entry: drop it and fall through to the API.
			_ = s.redis.Del(ctx, key).Err()
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("order cache read failed", slog.Any("error", err))
		}
	}

	order, err := s.fetch(ctx, orderNumber)
	if err != nil {
		return Order{}, err
	}

	if s.redis != nil {
		if encoded, err := json.Marshal(order); err == nil {
			if err := s.redis.Set(ctx, key, encoded, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("order cache write failed", slog.Any("error", err))
			}
		}
	}
	return order, nil
}

func (s *Service) fetch(ctx context.Context, orderNumber string) (Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%s", s.baseURL, orderNumber), nil)
	if err != nil {
		return Order{}, fmt.Errorf("build order request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Order{}, fmt.Errorf("%w: status %d", ErrLookupUnavailable, resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&order); err != nil {
		return Order{}, fmt.Errorf("%w: decode: %v", ErrLookupUnavailable, err)
	}
	if order.Number == "" {
		order.Number = orderNumber
	}
	return order, nil
}
