package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/logging"
	"go.uber.org/zap"
)

// converseAPI is the part of the Bedrock runtime client the adapter uses
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient is an implementation of the LLMClient interface using
// the model-agnostic Bedrock Converse API.
type BedrockClient struct {
	client  converseAPI
	modelID string
	logger  *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(client converseAPI, modelID string, logger *zap.Logger) *BedrockClient {
	return &BedrockClient{
		client:  client,
		modelID: modelID,
		logger:  logging.WithProvider(logger, "bedrock", modelID),
	}
}

// Name returns the provider name
func (c *BedrockClient) Name() string {
	return "bedrock"
}

// Generate sends the prompt as a single user turn
func (c *BedrockClient) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(req.Temperature),
		},
	}
	if req.MaxTokens > 0 {
		input.InferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	resp, err := c.client.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("unexpected Bedrock output type")
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("empty response from Bedrock")
	}

	c.logger.Debug("Bedrock response received",
		zap.String("stop_reason", string(resp.StopReason)))
	return text, nil
}
