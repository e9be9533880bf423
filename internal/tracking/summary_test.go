package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	to       []string
	err      error
}

func (f *fakeSender) SendText(_ context.Context, phoneNumber, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, phoneNumber)
	f.messages = append(f.messages, text)
	return nil
}

func withInfo(number, status, event string) Package {
	pkg := Package{Number: number, Carrier: 2151, TrackInfo: &TrackInfo{}}
	pkg.TrackInfo.LatestStatus.Status = status
	pkg.TrackInfo.LatestEvent.Description = event
	return pkg
}

func TestNeedsAttention(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		pkg  Package
		want bool
	}{
		{"alert status", withInfo("NL001", "Alert", "Carrier note"), true},
		{"expired status", withInfo("NL002", "Expired", ""), true},
		{"undelivered status", withInfo("NL003", "Undelivered", ""), true},
		{"customs keyword", withInfo("NL004", "InTransit", "Import customs retained"), true},
		{"portuguese keyword", withInfo("NL005", "InTransit", "Aguardando pagamento de taxa"), true},
		{"clean transit", withInfo("NL006", "InTransit", "Departed from facility"), false},
		{"no track info", Package{Number: "NL007", Carrier: 2151}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, needsAttention(tc.pkg))
		})
	}
}

func TestTranslateEvent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Retido na alfândega", translateEvent("Import customs retained"))
	assert.Equal(t, "Pacote retornando ao remetente", translateEvent("Package returning to sender"))
	// Unknown text passes through unchanged.
	assert.Equal(t, "Departed from facility", translateEvent("Departed from facility"))
}

func TestComposeSummaryGroups(t *testing.T) {
	t.Parallel()
	msg := composeSummary([]Package{
		withInfo("NL100", "InTransit", "Customs charges due"),
		withInfo("NL101", "InTransit", "Import customs retained"),
		withInfo("NL102", "Alert", "Carrier note"),
		withInfo("NL103", "Undelivered", "Delivery attempt failed"),
	})

	assert.True(t, strings.HasPrefix(msg, "📦 *Resumo de Pacotes*"))
	assert.Contains(t, msg, "💰 *Taxas Pendentes:*\n*NL100*\n*NL101*")
	// Only the first customs event becomes the shared status line.
	assert.Contains(t, msg, "_Status: Taxas alfandegárias pendentes_")
	assert.Contains(t, msg, "⚠️ *Em Alerta:*\n*NL102*: Nota da transportadora")
	assert.Contains(t, msg, "❌ *Com Problemas:*\n*NL103*: Delivery attempt failed")
}

func TestComposeSummaryReturnToSenderIsProblem(t *testing.T) {
	t.Parallel()
	// The event mentions customs too, but return-to-sender wins.
	msg := composeSummary([]Package{
		withInfo("NL200", "Alert", "Package returning to sender, customs refusal"),
	})
	assert.Contains(t, msg, "❌ *Com Problemas:*\n*NL200*:")
	assert.NotContains(t, msg, "💰")
	assert.NotContains(t, msg, "⚠️")
}

func summaryServer(t *testing.T, detailed []Package) *httptest.Server {
	t.Helper()
	listed := make([]Package, len(detailed))
	for i, pkg := range detailed {
		listed[i] = Package{Number: pkg.Number, Carrier: pkg.Carrier}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/track/v2.2/gettracklist", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"accepted": listed}})
	})
	mux.HandleFunc("/track/v2.2/gettrackinfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"accepted": detailed}})
	})
	return httptest.NewServer(mux)
}

func TestRunSendsSummary(t *testing.T) {
	t.Parallel()
	srv := summaryServer(t, []Package{
		withInfo("NL300", "InTransit", "Customs charges due"),
		withInfo("NL301", "InTransit", "Departed from facility"),
	})
	defer srv.Close()

	sender := &fakeSender{}
	s := NewSummary(nil, NewClient(nil, srv.URL, "track-key"), sender, "5511988887777")
	flagged, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
	require.Len(t, sender.messages, 1)
	assert.Equal(t, "5511988887777", sender.to[0])
	assert.Contains(t, sender.messages[0], "*NL300*")
	assert.NotContains(t, sender.messages[0], "NL301")
}

func TestRunSkipsSendWhenNothingFlagged(t *testing.T) {
	t.Parallel()
	srv := summaryServer(t, []Package{
		withInfo("NL400", "InTransit", "Departed from facility"),
	})
	defer srv.Close()

	sender := &fakeSender{}
	s := NewSummary(nil, NewClient(nil, srv.URL, "track-key"), sender, "5511988887777")
	flagged, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, flagged)
	assert.Empty(t, sender.messages)
}

func TestRunPropagatesSendFailure(t *testing.T) {
	t.Parallel()
	srv := summaryServer(t, []Package{
		withInfo("NL500", "Alert", "Carrier note"),
	})
	defer srv.Close()

	sendErr := errors.New("gateway disconnected")
	sender := &fakeSender{err: sendErr}
	s := NewSummary(nil, NewClient(nil, srv.URL, "track-key"), sender, "5511988887777")
	flagged, err := s.Run(context.Background())
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, 1, flagged)
}

func TestRunPropagatesTrackingFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 4031, "message": "invalid token"})
	}))
	defer srv.Close()

	sender := &fakeSender{}
	s := NewSummary(nil, NewClient(nil, srv.URL, "bad-key"), sender, "5511988887777")
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrTrackingUnavailable)
	assert.Empty(t, sender.messages)
}
