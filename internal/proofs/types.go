// Package proofs holds pending payment proofs per sender until a matching
// order number arrives or the TTL sweep evicts them.
package proofs

import (
	"time"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/analysis"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/webhook"
)

// PendingProof is a payment proof awaiting an order number. Keyed uniquely
// by sender; replaced wholesale on resubmission (last write wins).
type PendingProof struct {
	Sender     string
	Event      webhook.InboundEvent
	Analysis   analysis.Result
	ReceivedAt time.Time
}

// CorrelationRecord pairs a matched proof with the order number that
// correlated it. Ephemeral: consumed immediately by the forwarding gateway.
type CorrelationRecord struct {
	Proof       PendingProof
	OrderNumber string
	MatchedAt   time.Time
}
