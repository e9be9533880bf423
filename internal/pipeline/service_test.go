package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/analysis"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/mediacodec"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/orders"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/proofs"
	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/webhook"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) FetchMedia(ctx context.Context, ref *webhook.MediaReference) ([]byte, error) {
	return f.data, f.err
}

type fakeAnalyzer struct {
	imageResult analysis.Result
	imageErr    error
	audioResult analysis.Result
	audioErr    error
	imageCalls  int
	audioCalls  int
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mime, caption string) (analysis.Result, error) {
	f.imageCalls++
	return f.imageResult, f.imageErr
}

func (f *fakeAnalyzer) AnalyzeAudio(ctx context.Context, audio []byte, mime string) (analysis.Result, error) {
	f.audioCalls++
	return f.audioResult, f.audioErr
}

type fakeForwarder struct {
	records []proofs.CorrelationRecord
	err     error
}

func (f *fakeForwarder) Forward(ctx context.Context, record proofs.CorrelationRecord) error {
	f.records = append(f.records, record)
	return f.err
}

type fakeOrders struct {
	order orders.Order
	err   error
	calls int
}

func (f *fakeOrders) Lookup(ctx context.Context, orderNumber string) (orders.Order, error) {
	f.calls++
	return f.order, f.err
}

func fakeDecrypt(asset mediacodec.DecryptedAsset, err error) func([]byte, string, mediacodec.MediaKind) (mediacodec.DecryptedAsset, error) {
	return func([]byte, string, mediacodec.MediaKind) (mediacodec.DecryptedAsset, error) {
		return asset, err
	}
}

func imagePayload(sender string) []byte {
	return []byte(`{
		"messageId": "IMG-1",
		"sender": {"id": "` + sender + `"},
		"msgContent": {"imageMessage": {
			"url": "https://mmg.example/abc.enc",
			"mediaKey": "a2V5",
			"mimetype": "image/jpeg",
			"caption": "segue comprovante"
		}}
	}`)
}

func textPayload(sender, text string) []byte {
	return []byte(`{
		"messageId": "TXT-1",
		"sender": {"id": "` + sender + `"},
		"msgContent": {"conversation": "` + text + `"}
	}`)
}

func newTestService(analyzer *fakeAnalyzer, store ProofStore, forwarder *fakeForwarder, orderLookup *fakeOrders) *Service {
	return NewService(nil,
		&fakeFetcher{data: []byte("encrypted")},
		analyzer,
		store,
		forwarder,
		orderLookup,
	)
}

func TestProofCorrelationEndToEnd(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{imageResult: analysis.Result{
		Kind:      analysis.KindVisionText,
		Content:   "Comprovante de pagamento PIX, valor R$ 150,00",
		Attempts:  1,
		Succeeded: true,
	}}
	store := proofs.NewStore(nil, 24*time.Hour)
	forwarder := &fakeForwarder{}
	orderLookup := &fakeOrders{}
	svc := newTestService(analyzer, store, forwarder, orderLookup)
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("jpeg"), Format: mediacodec.FormatJPEG}, nil)

	require.NoError(t, svc.Process(context.Background(), imagePayload("5511999999999")))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, svc.Process(context.Background(), textPayload("5511999999999", "meu pedido 12345")))
	require.Len(t, forwarder.records, 1)
	assert.Equal(t, "12345", forwarder.records[0].OrderNumber)
	assert.Equal(t, "IMG-1", forwarder.records[0].Proof.Event.ID)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, orderLookup.calls, "correlation must not trigger the plain lookup")

	// A second order-number text from the same sender is a plain lookup.
	orderLookup.order = orders.Order{Number: "12345", Status: "paid"}
	require.NoError(t, svc.Process(context.Background(), textPayload("5511999999999", "12345")))
	assert.Len(t, forwarder.records, 1, "forwarder must be called at most once per correlation")
	assert.Equal(t, 1, orderLookup.calls)
}

func TestNonProofImageIsNotStored(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{imageResult: analysis.Result{
		Kind:      analysis.KindVisionText,
		Content:   "Foto de um tênis branco",
		Attempts:  1,
		Succeeded: true,
	}}
	store := proofs.NewStore(nil, 24*time.Hour)
	svc := newTestService(analyzer, store, &fakeForwarder{}, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("jpeg"), Format: mediacodec.FormatJPEG}, nil)

	require.NoError(t, svc.Process(context.Background(), imagePayload("5511999999999")))
	assert.Equal(t, 0, store.Len())
}

func TestUnknownFormatNeverReachesVision(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{}
	store := proofs.NewStore(nil, 24*time.Hour)
	svc := newTestService(analyzer, store, &fakeForwarder{}, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte{0, 0, 0, 0}, Format: mediacodec.FormatUnknown}, nil)

	require.NoError(t, svc.Process(context.Background(), imagePayload("5511999999999")))
	assert.Equal(t, 0, analyzer.imageCalls)
	assert.Equal(t, 0, store.Len())
}

func TestDecryptionFailurePropagates(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeAnalyzer{}, proofs.NewStore(nil, 24*time.Hour), &fakeForwarder{}, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{}, mediacodec.ErrDecryption)
	err := svc.Process(context.Background(), imagePayload("5511999999999"))
	assert.ErrorIs(t, err, mediacodec.ErrDecryption)
}

func TestInvalidPayloadIsDroppedNotFailed(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeAnalyzer{}, proofs.NewStore(nil, 24*time.Hour), &fakeForwarder{}, &fakeOrders{})
	assert.NoError(t, svc.Process(context.Background(), []byte(`{"no": "sender"}`)))
}

func TestTextWithoutOrderNumber(t *testing.T) {
	t.Parallel()

	orderLookup := &fakeOrders{}
	svc := newTestService(&fakeAnalyzer{}, proofs.NewStore(nil, 24*time.Hour), &fakeForwarder{}, orderLookup)

	require.NoError(t, svc.Process(context.Background(), textPayload("5511999999999", "bom dia")))
	assert.Equal(t, 0, orderLookup.calls)
}

func TestOrderNotFoundIsNotAnError(t *testing.T) {
	t.Parallel()

	orderLookup := &fakeOrders{err: orders.ErrOrderNotFound}
	svc := newTestService(&fakeAnalyzer{}, proofs.NewStore(nil, 24*time.Hour), &fakeForwarder{}, orderLookup)

	assert.NoError(t, svc.Process(context.Background(), textPayload("5511999999999", "123456")))
	assert.Equal(t, 1, orderLookup.calls)
}

func TestForwardingErrorPropagates(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{imageResult: analysis.Result{
		Content:   "comprovante pix valor",
		Succeeded: true,
	}}
	store := proofs.NewStore(nil, 24*time.Hour)
	forwarder := &fakeForwarder{err: errors.New("department channel down")}
	svc := newTestService(analyzer, store, forwarder, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("jpeg"), Format: mediacodec.FormatJPEG}, nil)

	require.NoError(t, svc.Process(context.Background(), imagePayload("5511999999999")))
	err := svc.Process(context.Background(), textPayload("5511999999999", "12345"))
	assert.Error(t, err)
}

func TestAudioTranscription(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{audioResult: analysis.Result{
		Kind:      analysis.KindTranscriptText,
		Content:   "quero saber do meu pedido",
		Attempts:  1,
		Succeeded: true,
	}}
	svc := newTestService(analyzer, proofs.NewStore(nil, 24*time.Hour), &fakeForwarder{}, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("opus"), Format: mediacodec.FormatOGG}, nil)

	raw := []byte(`{
		"messageId": "AUD-1",
		"sender": {"id": "5511999999999"},
		"msgContent": {"audioMessage": {"url": "https://mmg.example/a.enc", "mediaKey": "a2V5", "ptt": true}}
	}`)
	require.NoError(t, svc.Process(context.Background(), raw))
	assert.Equal(t, 1, analyzer.audioCalls)
}

func TestDocumentImageFollowsProofFlow(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{imageResult: analysis.Result{
		Content:   "comprovante de transferência, valor e data",
		Succeeded: true,
	}}
	store := proofs.NewStore(nil, 24*time.Hour)
	svc := newTestService(analyzer, store, &fakeForwarder{}, &fakeOrders{})
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("png"), Format: mediacodec.FormatPNG}, nil)

	raw := []byte(`{
		"messageId": "DOC-1",
		"sender": {"id": "5511999999999"},
		"msgContent": {"documentMessage": {"url": "https://mmg.example/d.enc", "mediaKey": "a2V5", "fileName": "comprovante.pdf"}}
	}`)
	require.NoError(t, svc.Process(context.Background(), raw))
	assert.Equal(t, 1, store.Len())
}

func TestExpirySweepPreventsForwarding(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{imageResult: analysis.Result{Content: "comprovante pix valor", Succeeded: true}}
	store := proofs.NewStore(nil, 24*time.Hour)
	forwarder := &fakeForwarder{}
	orderLookup := &fakeOrders{order: orders.Order{Number: "12345", Status: "paid"}}
	svc := newTestService(analyzer, store, forwarder, orderLookup)
	svc.decrypt = fakeDecrypt(mediacodec.DecryptedAsset{Bytes: []byte("jpeg"), Format: mediacodec.FormatJPEG}, nil)

	require.NoError(t, svc.Process(context.Background(), imagePayload("5511888888888")))
	store.Sweep(time.Now().Add(25 * time.Hour))

	require.NoError(t, svc.Process(context.Background(), textPayload("5511888888888", "12345")))
	assert.Empty(t, forwarder.records, "expired proofs must never be forwarded")
	assert.Equal(t, 1, orderLookup.calls, "expired flow falls back to plain lookup")
}
