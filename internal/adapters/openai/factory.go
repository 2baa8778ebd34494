package openai

import (
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIClient
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAIClient instances
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		logger: logger,
	}
}

// CreateLLMClient creates a client named after the provider it serves.
// A non-empty BaseURL points it at an OpenAI-compatible API such as Mistral.
func (f *Factory) CreateLLMClient(name string, cfg config.OpenAIConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return NewOpenAIClient(name, openai.NewClientWithConfig(clientCfg), cfg.ModelName, f.logger)
}
