package wapi

import "errors"

var (
	// ErrMediaUnavailable indicates the media fetch exhausted the primary
	// URL and the re-upload fallback. Not retried by callers.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrSendFailed indicates the gateway rejected an outbound message.
	ErrSendFailed = errors.New("wapi send failed")
)
