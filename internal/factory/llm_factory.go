package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/opportunity-agent/internal/adapters/bedrock"
	"github.com/mikey/opportunity-agent/internal/adapters/gemini"
	"github.com/mikey/opportunity-agent/internal/adapters/openai"
	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/secrets"
	"github.com/mikey/opportunity-agent/internal/utils"
	"go.uber.org/zap"
)

// Providers is the ordered provider list shared by both chains
type Providers []core.LLMClient

// Close releases providers that hold a connection
func (p Providers) Close() error {
	var errs []error
	for _, c := range p {
		if closer, ok := c.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", c.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// LLMFactory creates the provider chains
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateProviders builds the clients listed in llm.providers, in order.
// A provider without credentials is skipped with a warning; at least one
// provider must remain.
func (f *LLMFactory) CreateProviders(ctx context.Context) (Providers, error) {
	llmConfig, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}

	var providers Providers
	for _, name := range llmConfig.Providers {
		client, err := f.createClient(ctx, name)
		if errors.Is(err, secrets.ErrNotConfigured) {
			f.logger.Warn("Skipping provider without credentials",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		if err != nil {
			providers.Close()
			return nil, fmt.Errorf("failed to create %s client: %w", name, err)
		}
		providers = append(providers, client)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable LLM provider among %v", llmConfig.Providers)
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	f.logger.Info("LLM providers ready", zap.Strings("providers", names))
	return providers, nil
}

func (f *LLMFactory) createClient(ctx context.Context, name string) (core.LLMClient, error) {
	switch name {
	case config.ProviderOpenAI:
		cfg, err := f.cfg.GetOpenAI()
		if err != nil {
			return nil, err
		}
		return openai.NewFactory(f.logger).CreateLLMClient(name, cfg), nil
	case config.ProviderMistral:
		cfg, err := f.cfg.GetMistral()
		if err != nil {
			return nil, err
		}
		return openai.NewFactory(f.logger).CreateLLMClient(name, cfg), nil
	case config.ProviderGemini:
		cfg, err := f.cfg.GetGemini()
		if err != nil {
			return nil, err
		}
		return gemini.NewFactory(f.logger).CreateLLMClient(ctx, cfg)
	case config.ProviderBedrock:
		return bedrock.NewFactory(f.logger).CreateLLMClient(ctx, f.cfg.GetBedrock())
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
}

// CreateClassifierChain wraps the providers for scoring
func (f *LLMFactory) CreateClassifierChain(providers Providers) (*core.ClassifierChain, error) {
	llmConfig, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}
	opts := core.GenerationOptions{
		MaxTokens:   llmConfig.Classify.MaxTokens,
		Temperature: llmConfig.Classify.Temperature,
		Timeout:     llmConfig.Timeout,
		MaxBodySize: llmConfig.MaxBodySize,
	}
	return core.NewClassifierChain(providers, opts, f.textProcessor, f.logger), nil
}

// CreateResponseChain wraps the providers for drafting replies
func (f *LLMFactory) CreateResponseChain(providers Providers) (*core.ResponseChain, error) {
	llmConfig, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}
	reply := f.cfg.GetReply()
	opts := core.GenerationOptions{
		MaxTokens:   llmConfig.Draft.MaxTokens,
		Temperature: llmConfig.Draft.Temperature,
		Timeout:     llmConfig.Timeout,
		MaxBodySize: llmConfig.MaxBodySize,
	}
	fallback := core.FallbackDraft{
		Subject: reply.FallbackSubject,
		Message: reply.FallbackMessage,
	}
	return core.NewResponseChain(providers, opts, fallback, f.textProcessor, f.logger), nil
}
