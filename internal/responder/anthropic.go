package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 500
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion   = "2023-06-01"
	requestTimeout        = 60 * time.Second
)

// Anthropic drafts replies with the Claude Messages API.
type Anthropic struct {
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
}

// NewAnthropic creates a Claude-backed responder.
func NewAnthropic(apiKey, modelName string, maxTokens int, logger *zap.Logger) *Anthropic {
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{
		apiKey:    apiKey,
		apiURL:    anthropicAPIURL,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: requestTimeout},
		logger:    logger,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate sends the rendered prompt and returns the cleaned reply text.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	reqBody := anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(req)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if msg := gjson.GetBytes(respBody, "error.message").String(); msg != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parts []string
	for _, block := range gjson.GetBytes(respBody, `content.#(type=="text")#.text`).Array() {
		parts = append(parts, block.String())
	}

	a.logger.Debug("anthropic reply generated",
		zap.String("model", a.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", gjson.GetBytes(respBody, "stop_reason").String()),
	)

	text := CleanGenerated(strings.Join(parts, ""), req.SignatureName)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

const systemPrompt = "You draft short, courteous email replies on behalf of the mailbox owner. " +
	"Reply with the email body only: no subject line, no notes about the email."
