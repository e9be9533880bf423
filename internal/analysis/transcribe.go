package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

// TranscriptionClient talks to a whisper-style audio transcription endpoint.
type TranscriptionClient struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTranscriptionClient creates a TranscriptionClient for the given
// endpoint, model, and language hint.
func NewTranscriptionClient(log *slog.Logger, baseURL, apiKey, model, language string) *TranscriptionClient {
	if log == nil {
		log = slog.Default()
	}
	return &TranscriptionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		language:   language,
		httpClient: &http.Client{},
		logger:     log.With(slog.String("provider", "transcription")),
	}
}

// Transcribe submits the audio bytes and returns the transcript text.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", fileNameForMime(mime))
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	_ = form.WriteField("model", c.model)
	if c.language != "" {
		_ = form.WriteField("language", c.language)
	}
	_ = form.WriteField("response_format", "json")
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{code: resp.StatusCode, body: snippet(body)}
	}
	return decodeTranscript(body)
}

// decodeTranscript tolerates the two transcript shapes seen in the wild:
// a top-level "text" field and a top-level "transcription" field.
func decodeTranscript(body []byte) (string, error) {
	var decoded struct {
		Text          string `json:"text"`
		Transcription string `json:"transcription"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(decoded.Text) != "" {
		return decoded.Text, nil
	}
	if strings.TrimSpace(decoded.Transcription) != "" {
		return decoded.Transcription, nil
	}
	return "", fmt.Errorf("%w: no transcript text", ErrMalformedResponse)
}

func fileNameForMime(mime string) string {
	switch {
	case strings.Contains(mime, "ogg"), strings.Contains(mime, "opus"):
		return "audio.ogg"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return "audio.mp3"
	case strings.Contains(mime, "wav"):
		return "audio.wav"
	}
	return "audio.bin"
}
