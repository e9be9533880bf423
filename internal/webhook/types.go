// Package webhook parses raw W-API webhook payloads into typed inbound events.
package webhook

import "time"

// EventKind discriminates the concrete message carried by an inbound event.
// Exactly one kind is assigned per event.
type EventKind string

const (
	KindText     EventKind = "text"
	KindImage    EventKind = "image"
	KindAudio    EventKind = "audio"
	KindDocument EventKind = "document"
)

// MediaReference points at an encrypted media blob. It is owned by the event
// that produced it and consumed once by the media retriever.
type MediaReference struct {
	// MessageID is needed by the re-upload fallback when URL has expired.
	MessageID        string
	URL              string
	KeyMaterial      string
	DeclaredMimeType string
	ByteLength       int64
	IsPTT            bool
}

// InboundEvent is a classified inbound message. Immutable once built.
type InboundEvent struct {
	ID         string
	Sender     string
	Kind       EventKind
	ReceivedAt time.Time
	Caption    string
	Media      *MediaReference
	Text       string
}

// wire shapes

type payload struct {
	MessageID string          `json:"messageId"`
	Sender    *sender         `json:"sender"`
	Moment    int64           `json:"moment"`
	Content   *messageContent `json:"msgContent"`
}

type sender struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// messageContent mirrors the discriminated W-API message body. Wrapper
// envelopes (ephemeral, view-once, forwarded) nest the same shape.
type messageContent struct {
	Conversation        string          `json:"conversation"`
	ExtendedTextMessage *extendedText   `json:"extendedTextMessage"`
	ImageMessage        *mediaMessage   `json:"imageMessage"`
	AudioMessage        *mediaMessage   `json:"audioMessage"`
	DocumentMessage     *mediaMessage   `json:"documentMessage"`
	EphemeralMessage    *wrappedMessage `json:"ephemeralMessage"`
	ViewOnceMessage     *wrappedMessage `json:"viewOnceMessage"`
	ForwardedMessage    *wrappedMessage `json:"forwardedMessage"`
}

type extendedText struct {
	Text string `json:"text"`
}

type wrappedMessage struct {
	Message *messageContent `json:"message"`
}

type mediaMessage struct {
	URL        string `json:"url"`
	MediaKey   string `json:"mediaKey"`
	Mimetype   string `json:"mimetype"`
	FileLength int64  `json:"fileLength"`
	PTT        bool   `json:"ptt"`
	Caption    string `json:"caption"`
	FileName   string `json:"fileName"`
}
