// Package pipeline wires the inbound event flow: classify, retrieve and
// decrypt media, analyze, and correlate payment proofs with order numbers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/analysis"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/forward"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/mediacodec"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/orders"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/proofs"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/webhook"
)

// orderNumberPattern recognizes a plausible order number in a text message.
var orderNumberPattern = regexp.MustCompile(`\b(\d{4,10})\b`)

// MediaFetcher retrieves an encrypted media blob.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, ref *webhook.MediaReference) ([]byte, error)
}

// Analyzer submits decrypted media to the AI analysis endpoints.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mime, caption string) (analysis.Result, error)
	AnalyzeAudio(ctx context.Context, audio []byte, mime string) (analysis.Result, error)
}

// ProofStore is the pending-proof state machine.
type ProofStore interface {
	SubmitProof(proof proofs.PendingProof)
	TryCorrelate(sender, orderNumber string) (proofs.CorrelationRecord, bool)
	Len() int
}

// OrderLookup resolves an order number when no proof is pending.
type OrderLookup interface {
	Lookup(ctx context.Context, orderNumber string) (orders.Order, error)
}

// Service processes classified events through the proof correlation flow.
type Service struct {
	retriever MediaFetcher
	analyzer  Analyzer
	store     ProofStore
	forwarder forward.Forwarder
	orders    OrderLookup
	decrypt   func(encrypted []byte, keyMaterialB64 string, kind mediacodec.MediaKind) (mediacodec.DecryptedAsset, error)
	logger    *slog.Logger
}

// NewService creates the pipeline service.
func NewService(log *slog.Logger, retriever MediaFetcher, analyzer Analyzer, store ProofStore, forwarder forward.Forwarder, orderLookup OrderLookup) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		retriever: retriever,
		analyzer:  analyzer,
		store:     store,
		forwarder: forwarder,
		orders:    orderLookup,
		decrypt:   mediacodec.Decrypt,
		logger:    log.With(slog.String("service", "pipeline")),
	}
}

// Process classifies a raw webhook payload and runs the flow for its kind.
// Validation failures are dropped (logged, not returned); other errors
// propagate to the caller.
func (s *Service) Process(ctx context.Context, raw []byte) error {
	event, err := webhook.Classify(raw)
	if err != nil {
		if errors.Is(err, webhook.ErrValidation) {
			s.logger.Warn("dropping invalid payload", slog.Any("error", err))
			metrics.EventsTotal.WithLabelValues("unknown", "dropped").Inc()
			return nil
		}
		return err
	}

	log := s.logger.With(
		slog.String("event_id", event.ID),
		slog.String("sender", event.Sender),
		slog.String("kind", string(event.Kind)),
	)

	switch event.Kind {
	case webhook.KindImage:
		err = s.handleImage(ctx, log, event)
	case webhook.KindDocument:
		err = s.handleDocument(ctx, log, event)
	case webhook.KindAudio:
		err = s.handleAudio(ctx, log, event)
	case webhook.KindText:
		err = s.handleText(ctx, log, event)
	}

	status := "processed"
	if err != nil {
		status = "failed"
	}
	metrics.EventsTotal.WithLabelValues(string(event.Kind), status).Inc()
	return err
}

func (s *Service) handleImage(ctx context.Context, log *slog.Logger, event webhook.InboundEvent) error {
	asset, err := s.fetchAndDecrypt(ctx, event.Media, mediacodec.MediaImage)
	if err != nil {
		return err
	}
	return s.analyzeAsImage(ctx, log, event, asset)
}

// handleDocument treats documents that decrypt to an image format as
// potential payment proofs; anything else is dropped.
func (s *Service) handleDocument(ctx context.Context, log *slog.Logger, event webhook.InboundEvent) error {
	asset, err := s.fetchAndDecrypt(ctx, event.Media, mediacodec.MediaDocument)
	if err != nil {
		return err
	}
	if !asset.Format.IsImage() {
		log.Info("document is not an image, skipping analysis", slog.String("format", string(asset.Format)))
		return nil
	}
	return s.analyzeAsImage(ctx, log, event, asset)
}

func (s *Service) analyzeAsImage(ctx context.Context, log *slog.Logger, event webhook.InboundEvent, asset mediacodec.DecryptedAsset) error {
	// Assets without a recognized image signature are never submitted to
	// vision analysis.
	if !asset.Format.IsImage() {
		log.Warn("unrecognized media format, skipping analysis", slog.String("format", string(asset.Format)))
		return nil
	}

	result, err := s.analyzer.AnalyzeImage(ctx, asset.Bytes, asset.Format.MIME(), event.Caption)
	if err != nil {
		return fmt.Errorf("vision analysis: %w", err)
	}

	if !analysis.IsPaymentProof(result.Content) {
		log.Info("image is not a payment proof")
		return nil
	}

	s.store.SubmitProof(proofs.PendingProof{
		Sender:     event.Sender,
		Event:      event,
		Analysis:   result,
		ReceivedAt: time.Now().UTC(),
	})
	metrics.ProofsPending.Set(float64(s.store.Len()))
	log.Info("payment proof pending, awaiting order number")
	return nil
}

func (s *Service) handleAudio(ctx context.Context, log *slog.Logger, event webhook.InboundEvent) error {
	asset, err := s.fetchAndDecrypt(ctx, event.Media, mediacodec.MediaAudio)
	if err != nil {
		return err
	}

	mime := asset.Format.MIME()
	if !asset.Format.IsAudio() {
		// Fall back to the declared type; the transcriber rejects what it
		// cannot read.
		mime = event.Media.DeclaredMimeType
	}
	result, err := s.analyzer.AnalyzeAudio(ctx, asset.Bytes, mime)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	// The transcript feeds the conversational flow handled by the
	// downstream assistant; here it only matters for the audit log.
	log.Info("audio transcribed",
		slog.Int("attempts", result.Attempts),
		slog.Int("transcript_len", len(result.Content)),
	)
	return nil
}

func (s *Service) handleText(ctx context.Context, log *slog.Logger, event webhook.InboundEvent) error {
	orderNumber := orderNumberPattern.FindString(event.Text)
	if orderNumber == "" {
		log.Debug("text without order number, nothing to correlate")
		return nil
	}

	if record, ok := s.store.TryCorrelate(event.Sender, orderNumber); ok {
		metrics.CorrelationsTotal.Inc()
		metrics.ProofsPending.Set(float64(s.store.Len()))
		if err := s.forwarder.Forward(ctx, record); err != nil {
			return err
		}
		log.Info("proof correlated and forwarded", slog.String("order_number", orderNumber))
		return nil
	}

	// No pending proof: same text event doubles as a plain order query.
	order, err := s.orders.Lookup(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			log.Info("order number not found", slog.String("order_number", orderNumber))
			return nil
		}
		return fmt.Errorf("order lookup: %w", err)
	}
	log.Info("order lookup",
		slog.String("order_number", order.Number),
		slog.String("status", order.Status),
	)
	return nil
}

func (s *Service) fetchAndDecrypt(ctx context.Context, ref *webhook.MediaReference, kind mediacodec.MediaKind) (mediacodec.DecryptedAsset, error) {
	encrypted, err := s.retriever.FetchMedia(ctx, ref)
	if err != nil {
		return mediacodec.DecryptedAsset{}, err
	}

	asset, err := s.decrypt(encrypted, ref.KeyMaterial, kind)
	if err != nil {
		return mediacodec.DecryptedAsset{}, err
	}
	return asset, nil
}
