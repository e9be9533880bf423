package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
)

// Dispatcher runs analysis calls under a bounded retry policy. Transient
// failures (network, timeout, 5xx) are retried with linear backoff; 4xx and
// malformed responses fail immediately.
type Dispatcher struct {
	policy      RetryPolicy
	vision      VisionProvider
	transcriber TranscriptionProvider
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given policy and providers.
func NewDispatcher(log *slog.Logger, policy RetryPolicy, vision VisionProvider, transcriber TranscriptionProvider) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		policy:      policy.normalized(),
		vision:      vision,
		transcriber: transcriber,
		logger:      log.With(slog.String("service", "analysis")),
	}
}

// AnalyzeImage submits an image for vision analysis.
func (d *Dispatcher) AnalyzeImage(ctx context.Context, image []byte, mime, caption string) (Result, error) {
	return d.run(ctx, KindVisionText, func(attemptCtx context.Context) (string, error) {
		return d.vision.Describe(attemptCtx, image, mime, caption)
	})
}

// AnalyzeAudio submits an audio payload for transcription.
func (d *Dispatcher) AnalyzeAudio(ctx context.Context, audio []byte, mime string) (Result, error) {
	return d.run(ctx, KindTranscriptText, func(attemptCtx context.Context) (string, error) {
		return d.transcriber.Transcribe(attemptCtx, audio, mime)
	})
}

func (d *Dispatcher) run(ctx context.Context, kind ResultKind, call func(context.Context) (string, error)) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.policy.BaseDelay * time.Duration(attempt-1)
			select {
			case <-ctx.Done():
				// The owning task was cancelled; abandon the remaining
				// budget instead of banking it.
				return Result{Kind: kind, Attempts: attempt - 1}, ctx.Err()
			case <-time.After(delay):
			}
		}

		metrics.AnalysisAttemptsTotal.WithLabelValues(string(kind)).Inc()
		attemptCtx, cancel := context.WithTimeout(ctx, d.policy.AttemptTimeout)
		content, err := call(attemptCtx)
		cancel()

		if err == nil {
			return Result{Kind: kind, Content: content, Attempts: attempt, Succeeded: true}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Result{Kind: kind, Attempts: attempt}, ctx.Err()
		}
		if !retryable(err) {
			metrics.AnalysisFailuresTotal.WithLabelValues(string(kind)).Inc()
			return Result{Kind: kind, Attempts: attempt}, fmt.Errorf("%w: %v", ErrFatal, err)
		}

		d.logger.Warn("analysis attempt failed",
			slog.String("kind", string(kind)),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}

	metrics.AnalysisFailuresTotal.WithLabelValues(string(kind)).Inc()
	return Result{Kind: kind, Attempts: d.policy.MaxAttempts},
		fmt.Errorf("%w: retry budget exhausted after %d attempts: %v", ErrFatal, d.policy.MaxAttempts, lastErr)
}

// retryable classifies provider errors: network/timeout failures and 5xx
// responses are retryable, everything else is fatal.
func retryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Connection-level failures surface as *url.Error, which implements
	// net.Error, wrapping the underlying *net.OpError.
	var netErr net.Error
	return errors.As(err, &netErr)
}
