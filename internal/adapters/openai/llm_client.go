package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/logging"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the LLMClient interface for any
// endpoint speaking the OpenAI chat completions protocol.
type OpenAIClient struct {
	client    *openai.Client
	name      string
	modelName string
	logger    *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(name string, client *openai.Client, modelName string, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client:    client,
		name:      name,
		modelName: modelName,
		logger:    logging.WithProvider(logger, name, modelName),
	}
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return c.name
}

// Generate sends the prompt as a chat completion and returns the first choice
func (c *OpenAIClient) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with %s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response: no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty response: no content returned")
	}

	c.logger.Debug("Chat completion received",
		zap.String("completion_id", resp.ID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return text, nil
}
