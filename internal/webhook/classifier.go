package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxUnwrapDepth bounds wrapper recursion; real payloads nest at most two
// envelopes (e.g. a forwarded view-once message).
const maxUnwrapDepth = 4

// Classify parses a raw webhook payload into an InboundEvent. It fails with
// ErrValidation when the payload has no sender identifier or no recognizable
// message body. The returned event is never mutated afterwards.
func Classify(raw []byte) (InboundEvent, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if p.Sender == nil || strings.TrimSpace(p.Sender.ID) == "" {
		return InboundEvent{}, fmt.Errorf("%w: missing sender", ErrValidation)
	}
	if p.Content == nil {
		return InboundEvent{}, fmt.Errorf("%w: missing message content", ErrValidation)
	}

	content, err := unwrap(p.Content)
	if err != nil {
		return InboundEvent{}, err
	}

	receivedAt := time.Now().UTC()
	if p.Moment > 0 {
		receivedAt = time.Unix(p.Moment, 0).UTC()
	}

	event := InboundEvent{
		ID:         strings.TrimSpace(p.MessageID),
		Sender:     strings.TrimSpace(p.Sender.ID),
		ReceivedAt: receivedAt,
	}

	// Fixed type-check order: audio, image, document, text. The first
	// concrete message present determines the kind.
	switch {
	case content.AudioMessage != nil:
		event.Kind = KindAudio
		event.Media, err = mediaRef(content.AudioMessage, event.ID)
	case content.ImageMessage != nil:
		event.Kind = KindImage
		event.Caption = content.ImageMessage.Caption
		event.Media, err = mediaRef(content.ImageMessage, event.ID)
	case content.DocumentMessage != nil:
		event.Kind = KindDocument
		event.Caption = content.DocumentMessage.Caption
		event.Media, err = mediaRef(content.DocumentMessage, event.ID)
	case content.Conversation != "":
		event.Kind = KindText
		event.Text = content.Conversation
	case content.ExtendedTextMessage != nil && content.ExtendedTextMessage.Text != "":
		event.Kind = KindText
		event.Text = content.ExtendedTextMessage.Text
	default:
		return InboundEvent{}, fmt.Errorf("%w: no recognizable message body", ErrValidation)
	}
	if err != nil {
		return InboundEvent{}, err
	}

	return event, nil
}

// unwrap peels wrapper envelopes in fixed priority order
// (ephemeral > view-once > forwarded) until the innermost concrete message.
func unwrap(content *messageContent) (*messageContent, error) {
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		var inner *wrappedMessage
		switch {
		case content.EphemeralMessage != nil:
			inner = content.EphemeralMessage
		case content.ViewOnceMessage != nil:
			inner = content.ViewOnceMessage
		case content.ForwardedMessage != nil:
			inner = content.ForwardedMessage
		default:
			return content, nil
		}
		if inner.Message == nil {
			return nil, fmt.Errorf("%w: empty wrapper envelope", ErrValidation)
		}
		content = inner.Message
	}
	return nil, fmt.Errorf("%w: wrapper nesting too deep", ErrValidation)
}

func mediaRef(m *mediaMessage, messageID string) (*MediaReference, error) {
	if strings.TrimSpace(m.URL) == "" || strings.TrimSpace(m.MediaKey) == "" {
		return nil, fmt.Errorf("%w: media message without url or key material", ErrValidation)
	}
	return &MediaReference{
		MessageID:        messageID,
		URL:              m.URL,
		KeyMaterial:      m.MediaKey,
		DeclaredMimeType: m.Mimetype,
		ByteLength:       m.FileLength,
		IsPTT:            m.PTT,
	}, nil
}
