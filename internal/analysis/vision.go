package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const visionPrompt = "Descreva detalhadamente o conteúdo desta imagem. " +
	"Se for um comprovante de pagamento, transcreva valor, data, banco e beneficiário."

// VisionClient talks to an OpenAI-compatible chat-completions endpoint with
// an inline base64 image payload.
type VisionClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewVisionClient creates a VisionClient for the given endpoint and model.
func NewVisionClient(log *slog.Logger, baseURL, apiKey, model string) *VisionClient {
	if log == nil {
		log = slog.Default()
	}
	return &VisionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		logger:     log.With(slog.String("provider", "vision")),
	}
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// Describe submits the image and returns the model's textual description.
func (c *VisionClient) Describe(ctx context.Context, image []byte, mime, caption string) (string, error) {
	if mime == "" {
		mime = "image/jpeg"
	}
	prompt := visionPrompt
	if strings.TrimSpace(caption) != "" {
		prompt = fmt.Sprintf("%s\n\nLegenda enviada pelo cliente: %s", visionPrompt, caption)
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image)),
				}},
			},
		}},
		MaxTokens: 1024,
	}

	body, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}
	return decodeChatContent(body)
}

func (c *VisionClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: snippet(body)}
	}
	return body, nil
}

// decodeChatContent extracts choices[0].message.content. Any other shape is
// a malformed response, surfaced as fatal.
func decodeChatContent(body []byte) (string, error) {
	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no content in choices", ErrMalformedResponse)
	}
	return decoded.Choices[0].Message.Content, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
