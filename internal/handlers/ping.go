package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ProofCounter reports how many payment proofs are awaiting correlation.
type ProofCounter interface {
	Len() int
}

type PingHandler struct {
	proofs ProofCounter
	logger *slog.Logger
}

func NewPingHandler(log *slog.Logger, proofs ProofCounter) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{proofs: proofs, logger: log.With(slog.String("handler", "ping"))}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/health", h.Health)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *PingHandler) Health(c echo.Context) error {
	pending := 0
	if h.proofs != nil {
		pending = h.proofs.Len()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"pending_proofs": pending,
	})
}
