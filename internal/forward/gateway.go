// Package forward delivers matched payment proofs to the human back-office
// channel.
package forward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/proofs"
)

// Forwarder delivers a correlation record. The pipeline calls it at most
// once per successful correlation and never on expiry.
type Forwarder interface {
	Forward(ctx context.Context, record proofs.CorrelationRecord) error
}

// TextSender sends a text message to a phone number. Satisfied by the W-API
// client.
type TextSender interface {
	SendText(ctx context.Context, phoneNumber, text string) error
}

// Gateway forwards correlation records to the back-office number as a
// structured text notification.
type Gateway struct {
	sender     TextSender
	department string
	logger     *slog.Logger
}

// NewGateway creates a Gateway delivering to the department phone number.
func NewGateway(log *slog.Logger, sender TextSender, department string) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		sender:     sender,
		department: department,
		logger:     log.With(slog.String("service", "forward")),
	}
}

// Forward composes and sends the notification for a matched proof.
func (g *Gateway) Forward(ctx context.Context, record proofs.CorrelationRecord) error {
	notificationID := uuid.NewString()
	text := composeNotification(record, notificationID)

	if err := g.sender.SendText(ctx, g.department, text); err != nil {
		return fmt.Errorf("%w: %v", ErrForwarding, err)
	}

	g.logger.Info("proof forwarded",
		slog.String("sender", record.Proof.Sender),
		slog.String("order_number", record.OrderNumber),
		slog.String("notification_id", notificationID),
	)
	return nil
}

func composeNotification(record proofs.CorrelationRecord, notificationID string) string {
	var b strings.Builder
	b.WriteString("🧾 Comprovante de pagamento recebido\n\n")
	fmt.Fprintf(&b, "Pedido: #%s\n", record.OrderNumber)
	fmt.Fprintf(&b, "Cliente: %s\n", record.Proof.Sender)
	fmt.Fprintf(&b, "Recebido em: %s\n", record.Proof.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Notificação: %s\n\n", notificationID)
	b.WriteString("Análise da imagem:\n")
	b.WriteString(record.Proof.Analysis.Content)
	return b.String()
}
