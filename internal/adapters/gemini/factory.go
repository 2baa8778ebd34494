package gemini

import (
	"context"

	"github.com/mikey/opportunity-agent/internal/config"
	"go.uber.org/zap"
)

// Factory creates new instances of GeminiClient
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates a new factory for GeminiClient instances
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		logger: logger,
	}
}

// CreateLLMClient creates a new GeminiClient
func (f *Factory) CreateLLMClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	return NewGeminiClient(ctx, cfg.APIKey, cfg.ModelName, f.logger)
}
