package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/pipeline"
)

// maxWebhookBody bounds the accepted payload size. Webhook events carry
// media by reference, never inline, so 1 MiB is generous.
const maxWebhookBody = 1 << 20

// Enqueuer hands a raw payload to the processing pool.
type Enqueuer interface {
	Enqueue(raw []byte) error
}

// WebhookHandler receives gateway event notifications. The gateway expects
// a fast acknowledgment; processing happens on the worker pool.
type WebhookHandler struct {
	queue  Enqueuer
	secret string
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, queue Enqueuer, secret string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		queue:  queue,
		secret: secret,
		logger: log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/wapi", h.Receive)
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	if h.secret != "" {
		given := c.Request().Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if len(body) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "empty body"})
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
	}

	if err := h.queue.Enqueue(body); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			h.logger.Warn("queue full, asking gateway to redeliver")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "queue full"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
