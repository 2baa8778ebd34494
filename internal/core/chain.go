package core

import (
	"context"
	"strings"
	"time"

	"github.com/mikey/opportunity-agent/internal/utils"
	"go.uber.org/zap"
)

// GenerationOptions tunes the prompts a chain sends
type GenerationOptions struct {
	MaxTokens   int
	Temperature float32
	// Timeout bounds each provider attempt
	Timeout time.Duration
	// MaxBodySize bounds the opportunity text embedded in the prompt
	MaxBodySize int
}

// Outcome is the tagged result of one provider attempt
type Outcome[T any] struct {
	Value    T
	Provider string
	Err      error
}

// OK reports whether the attempt succeeded
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// firstSuccess folds the providers left to right and stops at the first
// successful attempt. Every failure is passed to onFailure.
func firstSuccess[T any](
	ctx context.Context,
	providers []LLMClient,
	attempt func(context.Context, LLMClient) Outcome[T],
	onFailure func(Outcome[T]),
) (Outcome[T], bool) {
	for _, p := range providers {
		out := attempt(ctx, p)
		if out.OK() {
			return out, true
		}
		onFailure(out)
	}
	return Outcome[T]{}, false
}

func generate(ctx context.Context, p LLMClient, timeout time.Duration, req GenerateRequest) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Generate(ctx, req)
}

// ClassifierChain scores opportunities with an ordered list of providers
type ClassifierChain struct {
	providers     []LLMClient
	opts          GenerationOptions
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewClassifierChain creates a new classifier chain
func NewClassifierChain(providers []LLMClient, opts GenerationOptions, textProcessor *utils.TextProcessor, logger *zap.Logger) *ClassifierChain {
	return &ClassifierChain{
		providers:     providers,
		opts:          opts,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Classify scores the opportunity. It never fails: when every provider
// fails the technical error result is returned.
func (c *ClassifierChain) Classify(ctx context.Context, opp *Opportunity, criteria Criteria) AnalysisResult {
	body := c.textProcessor.ProcessText(opp.Body, c.opts.MaxBodySize)
	req := GenerateRequest{
		System:      classifySystem,
		Prompt:      buildClassifyPrompt(opp, body, criteria),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSON:        true,
	}

	out, ok := firstSuccess(ctx, c.providers,
		func(ctx context.Context, p LLMClient) Outcome[AnalysisResult] {
			return c.attempt(ctx, p, req, criteria)
		},
		func(o Outcome[AnalysisResult]) {
			c.logger.Warn("Classifier attempt failed, trying next provider",
				zap.String("opportunity_id", opp.ID),
				zap.String("provider", o.Provider),
				zap.Error(o.Err))
		},
	)
	if !ok {
		c.logger.Error("No classifier produced a result",
			zap.String("opportunity_id", opp.ID),
			zap.Int("providers", len(c.providers)))
		return ErrorResult()
	}

	c.logger.Info("Opportunity classified",
		zap.String("opportunity_id", opp.ID),
		zap.String("provider", out.Provider),
		zap.Int("pertinence", out.Value.Pertinence),
		zap.String("decision", string(out.Value.Decision)))
	return out.Value
}

func (c *ClassifierChain) attempt(ctx context.Context, p LLMClient, req GenerateRequest, criteria Criteria) Outcome[AnalysisResult] {
	name := p.Name()
	raw, err := generate(ctx, p, c.opts.Timeout, req)
	if err != nil {
		return Outcome[AnalysisResult]{Provider: name, Err: &ProviderError{Op: "classify", Provider: name, Err: err}}
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		c.logger.Debug("Unparseable classifier reply",
			zap.String("provider", name),
			zap.String("reply", c.textProcessor.TruncateText(raw, 500)))
		return Outcome[AnalysisResult]{Provider: name, Err: &ProviderError{Op: "classify", Provider: name, Err: err}}
	}

	providerDecision := parsed.Decision
	result, disagreed, err := reconcile(parsed, criteria)
	if disagreed {
		c.logger.Warn("Provider decision disagrees with relevance threshold",
			zap.String("provider", name),
			zap.String("provider_decision", string(providerDecision)),
			zap.Int("pertinence", parsed.Pertinence),
			zap.Int("threshold", criteria.RelevanceThreshold),
			zap.String("policy", string(criteria.Policy)))
	}
	if err != nil {
		return Outcome[AnalysisResult]{Provider: name, Err: &ProviderError{Op: "classify", Provider: name, Err: err}}
	}

	result.Provider = name
	return Outcome[AnalysisResult]{Value: result, Provider: name}
}

// FallbackDraft is the reply used when no provider could draft one
type FallbackDraft struct {
	Subject string
	Message string
}

// ResponseChain drafts replies with an ordered list of providers
type ResponseChain struct {
	providers     []LLMClient
	opts          GenerationOptions
	fallback      FallbackDraft
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewResponseChain creates a new response chain
func NewResponseChain(providers []LLMClient, opts GenerationOptions, fallback FallbackDraft, textProcessor *utils.TextProcessor, logger *zap.Logger) *ResponseChain {
	return &ResponseChain{
		providers:     providers,
		opts:          opts,
		fallback:      fallback,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Draft proposes a reply. When every provider fails the fallback
// acknowledgement is returned with the configured signature.
func (c *ResponseChain) Draft(ctx context.Context, opp *Opportunity, criteria Criteria, signature string) ResponseDraft {
	body := c.textProcessor.ProcessText(opp.Body, c.opts.MaxBodySize)
	req := GenerateRequest{
		System:      draftSystem,
		Prompt:      buildDraftPrompt(opp, body, criteria, signature),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSON:        true,
	}

	out, ok := firstSuccess(ctx, c.providers,
		func(ctx context.Context, p LLMClient) Outcome[ResponseDraft] {
			name := p.Name()
			raw, err := generate(ctx, p, c.opts.Timeout, req)
			if err == nil {
				var d ResponseDraft
				if d, err = parseDraft(raw); err == nil {
					d.Provider = name
					return Outcome[ResponseDraft]{Value: d, Provider: name}
				}
			}
			return Outcome[ResponseDraft]{Provider: name, Err: &ProviderError{Op: "draft", Provider: name, Err: err}}
		},
		func(o Outcome[ResponseDraft]) {
			c.logger.Warn("Draft attempt failed, trying next provider",
				zap.String("opportunity_id", opp.ID),
				zap.String("provider", o.Provider),
				zap.Error(o.Err))
		},
	)
	if !ok {
		c.logger.Warn("No provider drafted a reply, using fallback",
			zap.String("opportunity_id", opp.ID))
		return ResponseDraft{
			Subject:   c.fallback.Subject,
			Message:   c.fallback.Message,
			Signature: signature,
		}
	}

	d := out.Value
	if d.Signature == "" {
		d.Signature = signature
	}
	c.logger.Info("Reply drafted",
		zap.String("opportunity_id", opp.ID),
		zap.String("provider", out.Provider),
		zap.String("subject", d.Subject))
	return d
}

// replySubject prefixes the subject for a reply unless it already is one
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "re:") || strings.HasPrefix(lower, "re :") {
		return trimmed
	}
	return "Re: " + trimmed
}
