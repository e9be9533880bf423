// Package tracking talks to the 17track API and produces the daily customs
// summary for the back-office WhatsApp number.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// pageSize is the 17track list page size; a page shorter than this is the
// last one.
const pageSize = 40

// Package is one tracked shipment as the 17track API reports it. TrackInfo
// is only populated by PackageDetails.
type Package struct {
	Number    string     `json:"number"`
	Carrier   int64      `json:"carrier"`
	TrackInfo *TrackInfo `json:"track_info,omitempty"`
}

// TrackInfo is the detail subset the summary needs.
type TrackInfo struct {
	LatestStatus struct {
		Status string `json:"status"`
	} `json:"latest_status"`
	LatestEvent struct {
		Description string `json:"description"`
	} `json:"latest_event"`
}

// Client is a 17track v2.2 HTTP client. Requests authenticate with the
// 17token header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given 17track endpoint and key.
func NewClient(log *slog.Logger, baseURL, apiKey string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("service", "tracking")),
	}
}

type trackListRequest struct {
	TrackingStatus string `json:"tracking_status"`
	PageSize       int    `json:"page_size"`
	PageNo         int    `json:"page_no"`
	OrderBy        string `json:"order_by"`
}

type trackDetailRequest struct {
	Number  string `json:"number"`
	Carrier int64  `json:"carrier"`
}

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Accepted []Package `json:"accepted"`
	} `json:"data"`
}

// ListPackages returns every shipment currently in Tracking status,
// following pagination until a short page.
func (c *Client) ListPackages(ctx context.Context) ([]Package, error) {
	var all []Package
	for page := 1; ; page++ {
		reqBody := trackListRequest{
			TrackingStatus: "Tracking",
			PageSize:       pageSize,
			PageNo:         page,
			OrderBy:        "RegisterTimeDesc",
		}
		decoded, err := c.post(ctx, "/track/v2.2/gettracklist", reqBody)
		if err != nil {
			return nil, err
		}
		all = append(all, decoded.Data.Accepted...)
		if len(decoded.Data.Accepted) < pageSize {
			break
		}
	}
	c.logger.Info("tracking list fetched", slog.Int("packages", len(all)))
	return all, nil
}

// PackageDetails fetches track_info for the given shipments in batches of
// the API's page size.
func (c *Client) PackageDetails(ctx context.Context, packages []Package) ([]Package, error) {
	var detailed []Package
	for start := 0; start < len(packages); start += pageSize {
		end := start + pageSize
		if end > len(packages) {
			end = len(packages)
		}
		batch := make([]trackDetailRequest, 0, end-start)
		for _, pkg := range packages[start:end] {
			batch = append(batch, trackDetailRequest{Number: pkg.Number, Carrier: pkg.Carrier})
		}
		decoded, err := c.post(ctx, "/track/v2.2/gettrackinfo", batch)
		if err != nil {
			return nil, err
		}
		detailed = append(detailed, decoded.Data.Accepted...)
	}
	return detailed, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*apiResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tracking request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build tracking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("17token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackingUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrTrackingUnavailable, resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTrackingUnavailable, err)
	}
	if decoded.Code != 0 {
		return nil, fmt.Errorf("%w: code %d: %s", ErrTrackingUnavailable, decoded.Code, decoded.Message)
	}
	return &decoded, nil
}
