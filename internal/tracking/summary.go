package tracking

import (
	"context"
	"log/slog"
	"strings"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
)

// customsKeywords mark an event description as a customs hold. Matching is
// case-insensitive against the translated description.
var customsKeywords = []string{
	"customs",
	"taxa",
	"imposto",
	"tributação",
	"alfândega",
	"fiscalização",
	"autoridade competente",
}

// eventTranslations maps carrier event phrases to Portuguese for the
// summary message.
var eventTranslations = map[string]string{
	"Import customs clearance delay":    "Atraso no desembaraço aduaneiro",
	"Customs duties payment requested":  "Pagamento de taxas alfandegárias solicitado",
	"Package returning to sender":       "Pacote retornando ao remetente",
	"Carrier note":                      "Nota da transportadora",
	"Awaiting payment":                  "Aguardando pagamento",
	"Import customs retained":           "Retido na alfândega",
	"Import customs clearance complete": "Desembaraço aduaneiro concluído",
	"Pending customs inspection":        "Aguardando inspeção aduaneira",
	"Customs charges due":               "Taxas alfandegárias pendentes",
}

// TextSender delivers the summary message. *wapi.Client satisfies it.
type TextSender interface {
	SendText(ctx context.Context, phoneNumber, text string) error
}

// Summary lists tracked packages, flags the ones stuck in customs or
// failing delivery, and sends a grouped report to the back-office number.
type Summary struct {
	client    *Client
	sender    TextSender
	recipient string
	logger    *slog.Logger
}

// NewSummary creates a Summary that reports to recipient.
func NewSummary(log *slog.Logger, client *Client, sender TextSender, recipient string) *Summary {
	if log == nil {
		log = slog.Default()
	}
	return &Summary{
		client:    client,
		sender:    sender,
		recipient: recipient,
		logger:    log.With(slog.String("service", "customs_summary")),
	}
}

// Run executes one summary cycle and returns the number of flagged
// packages. Nothing is sent when no package needs attention.
func (s *Summary) Run(ctx context.Context) (int, error) {
	packages, err := s.client.ListPackages(ctx)
	if err != nil {
		return 0, err
	}
	detailed, err := s.client.PackageDetails(ctx, packages)
	if err != nil {
		return 0, err
	}

	var flagged []Package
	for _, pkg := range detailed {
		if needsAttention(pkg) {
			flagged = append(flagged, pkg)
		}
	}
	metrics.TrackingPendingPackages.Set(float64(len(flagged)))

	if len(flagged) == 0 {
		s.logger.Info("no packages need attention")
		return 0, nil
	}

	if err := s.sender.SendText(ctx, s.recipient, composeSummary(flagged)); err != nil {
		return len(flagged), err
	}
	metrics.TrackingSummariesTotal.Inc()
	s.logger.Info("summary sent", slog.Int("flagged", len(flagged)))
	return len(flagged), nil
}

// needsAttention reports whether a package has a problem status or a
// customs-related latest event.
func needsAttention(pkg Package) bool {
	if pkg.TrackInfo == nil {
		return false
	}
	status := strings.ToLower(pkg.TrackInfo.LatestStatus.Status)
	switch status {
	case "alert", "expired", "undelivered":
		return true
	}
	description := strings.ToLower(pkg.TrackInfo.LatestEvent.Description)
	for _, keyword := range customsKeywords {
		if strings.Contains(description, keyword) {
			return true
		}
	}
	return false
}

// translateEvent replaces known carrier phrases with their Portuguese
// equivalents, leaving unknown text untouched.
func translateEvent(event string) string {
	for eng, pt := range eventTranslations {
		event = strings.ReplaceAll(event, eng, pt)
	}
	return event
}

// composeSummary groups flagged packages into pending taxes, alerts and
// delivery problems. Returning-to-sender packages always count as
// problems, even when the event also mentions customs.
func composeSummary(packages []Package) string {
	var taxes, alerts, problems []string
	var taxStatus string

	for _, pkg := range packages {
		if pkg.TrackInfo == nil {
			continue
		}
		status := strings.ToLower(pkg.TrackInfo.LatestStatus.Status)
		event := translateEvent(pkg.TrackInfo.LatestEvent.Description)
		lower := strings.ToLower(event)

		if strings.Contains(lower, "retornando ao remetente") {
			problems = append(problems, "*"+pkg.Number+"*: "+event)
			continue
		}

		customs := false
		for _, keyword := range customsKeywords {
			if strings.Contains(lower, keyword) {
				customs = true
				break
			}
		}
		if customs {
			taxes = append(taxes, "*"+pkg.Number+"*")
			if taxStatus == "" {
				taxStatus = event
			}
			continue
		}

		switch status {
		case "alert":
			alerts = append(alerts, "*"+pkg.Number+"*: "+event)
		case "expired", "undelivered":
			problems = append(problems, "*"+pkg.Number+"*: "+event)
		}
	}

	var b strings.Builder
	b.WriteString("📦 *Resumo de Pacotes*\n")
	if len(taxes) > 0 {
		b.WriteString("\n💰 *Taxas Pendentes:*\n")
		b.WriteString(strings.Join(taxes, "\n"))
		if taxStatus != "" {
			b.WriteString("\n\n_Status: " + taxStatus + "_")
		}
	}
	if len(alerts) > 0 {
		b.WriteString("\n\n⚠️ *Em Alerta:*\n")
		b.WriteString(strings.Join(alerts, "\n"))
	}
	if len(problems) > 0 {
		b.WriteString("\n\n❌ *Com Problemas:*\n")
		b.WriteString(strings.Join(problems, "\n"))
	}
	return b.String()
}
