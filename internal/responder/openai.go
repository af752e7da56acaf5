package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI drafts replies with the Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAI creates an OpenAI-backed responder. Extra request options
// (base URL, retries) may be supplied for alternative endpoints.
func NewOpenAI(apiKey, modelName string, maxTokens int, logger *zap.Logger, opts ...option.RequestOption) *OpenAI {
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(requestTimeout),
	}, opts...)

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     modelName,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate sends the rendered prompt and returns the cleaned reply text.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(int64(o.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyReply
	}

	o.logger.Debug("openai reply generated",
		zap.String("model", o.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("finish_reason", string(completion.Choices[0].FinishReason)),
	)

	text := CleanGenerated(completion.Choices[0].Message.Content, req.SignatureName)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
