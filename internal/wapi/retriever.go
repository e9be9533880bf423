package wapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/webhook"
)

// maxMediaBytes caps a single media download.
const maxMediaBytes = 64 << 20

// Retriever downloads encrypted media blobs, falling back to a gateway
// re-upload exactly once when the content URL has expired.
type Retriever struct {
	client     *Client
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRetriever creates a Retriever backed by the given gateway client.
func NewRetriever(log *slog.Logger, client *Client) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log.With(slog.String("service", "media_retriever")),
	}
}

// FetchMedia retrieves the encrypted blob for a media reference. When the
// primary GET fails with an authorization or not-found status, it requests a
// re-upload and retries the GET once; a second failure is terminal
// (ErrMediaUnavailable). The retry budget for downstream analysis calls does
// not apply here.
func (r *Retriever) FetchMedia(ctx context.Context, ref *webhook.MediaReference) ([]byte, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: nil media reference", ErrMediaUnavailable)
	}

	data, status, err := r.download(ctx, ref.URL)
	if err == nil {
		return data, nil
	}
	if !urlExpired(status) {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	r.logger.Info("media url expired, requesting re-upload",
		slog.String("message_id", ref.MessageID),
		slog.Int("status", status),
	)
	metrics.MediaFallbacksTotal.Inc()

	freshURL, reuploadErr := r.client.RequestMediaReupload(ctx, ref.MessageID)
	if reuploadErr != nil {
		return nil, fmt.Errorf("%w: re-upload: %v", ErrMediaUnavailable, reuploadErr)
	}
	data, _, err = r.download(ctx, freshURL)
	if err != nil {
		return nil, fmt.Errorf("%w: after re-upload: %v", ErrMediaUnavailable, err)
	}
	return data, nil
}

// urlExpired reports whether the status is the authorization/not-found class
// that the re-upload fallback can fix.
func urlExpired(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// download GETs the URL, spooling the body through a temp file that is
// removed unconditionally. Returns the response status alongside any error
// so the caller can classify it.
func (r *Retriever) download(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build media request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("media request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("media request: status %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "chatbot-media-*")
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}()

	n, err := io.Copy(tempFile, io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("spool media: %w", err)
	}
	if n > maxMediaBytes {
		return nil, resp.StatusCode, fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read spooled media: %w", err)
	}
	return data, resp.StatusCode, nil
}
