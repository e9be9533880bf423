// Package wapi talks to the W-API WhatsApp HTTP gateway: outbound text
// messages, media downloads, and the media re-upload fallback.
package wapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin W-API HTTP client. All requests carry the bearer token
// and the connection key query parameter the gateway expects.
type Client struct {
	baseURL       string
	token         string
	connectionKey string
	messageDelay  time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a Client for the given gateway credentials.
func NewClient(log *slog.Logger, baseURL, token, connectionKey string, messageDelay time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		connectionKey: connectionKey,
		messageDelay:  messageDelay,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        log.With(slog.String("service", "wapi")),
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s?connectionKey=%s", c.baseURL, strings.TrimLeft(path, "/"), url.QueryEscape(c.connectionKey))
}

type sendTextRequest struct {
	PhoneNumber  string `json:"phoneNumber"`
	Text         string `json:"text"`
	DelayMessage string `json:"delayMessage"`
}

type sendTextResponse struct {
	Error     bool   `json:"error"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// SendText sends a text message to a phone number through the gateway.
func (c *Client) SendText(ctx context.Context, phoneNumber, text string) error {
	body, err := json.Marshal(sendTextRequest{
		PhoneNumber:  phoneNumber,
		Text:         text,
		DelayMessage: fmt.Sprintf("%d", int(c.messageDelay.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("encode send-text request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("message/send-text"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send-text request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	var decoded sendTextResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSendFailed, err)
	}
	if decoded.Error {
		return fmt.Errorf("%w: %s", ErrSendFailed, decoded.Message)
	}

	c.logger.Info("message sent",
		slog.String("phone_number", phoneNumber),
		slog.String("message_id", decoded.MessageID),
	)
	return nil
}

type reuploadRequest struct {
	MessageID string `json:"messageId"`
}

type reuploadResponse struct {
	Error   bool   `json:"error"`
	FileURL string `json:"fileURL"`
	Message string `json:"message"`
}

// RequestMediaReupload asks the gateway to re-upload the media of a message
// and returns the fresh download URL.
func (c *Client) RequestMediaReupload(ctx context.Context, messageID string) (string, error) {
	body, err := json.Marshal(reuploadRequest{MessageID: messageID})
	if err != nil {
		return "", fmt.Errorf("encode re-upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("message/download-media"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build re-upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("re-upload request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("re-upload request: status %d", resp.StatusCode)
	}

	var decoded reuploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode re-upload response: %w", err)
	}
	if decoded.Error || strings.TrimSpace(decoded.FileURL) == "" {
		return "", fmt.Errorf("re-upload rejected: %s", decoded.Message)
	}
	return decoded.FileURL, nil
}
