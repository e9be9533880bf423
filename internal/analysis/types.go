// Package analysis submits media and text to external AI inference endpoints
// and normalizes their heterogeneous responses into a single result type.
package analysis

import (
	"context"
	"time"
)

// ResultKind discriminates what produced the analysis content.
type ResultKind string

const (
	KindVisionText     ResultKind = "vision_text"
	KindTranscriptText ResultKind = "transcript_text"
)

// Result is the normalized outcome of an analysis. Attempts is always at
// least 1 and never exceeds the policy's maximum.
type Result struct {
	Kind      ResultKind
	Content   string
	Attempts  int
	Succeeded bool
}

// RetryPolicy bounds the dispatcher's retry loop. Before attempt n (n > 1)
// the dispatcher waits BaseDelay × (n−1).
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is 3 attempts with linear backoff from 1s and a 30s
// per-attempt deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = 30 * time.Second
	}
	return p
}

// VisionProvider produces a textual description of an image.
type VisionProvider interface {
	Describe(ctx context.Context, image []byte, mime, caption string) (string, error)
}

// TranscriptionProvider produces a transcript of an audio payload.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
}
