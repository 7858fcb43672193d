package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/gyn-triage/internal/config"
	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

type llmObserver interface {
	ObserveLLM(purpose string, failed bool, seconds float64)
}

// BuildLLMClient wires the primary provider, an optional fallback provider
// and latency instrumentation. The returned closer releases provider clients.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, observer llmObserver, logger *logging.Logger) (conversation.LLMClient, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var closers []func() error
	closeAll := func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	primary, closer, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	var fallback conversation.LLMClient
	if fb := strings.TrimSpace(cfg.LLMFallbackProvider); fb != "" && fb != cfg.LLMProvider {
		client, closer, err := buildProvider(ctx, fb, cfg, awsCfg)
		if err != nil {
			logger.Warn("fallback llm provider unavailable; continuing without it", "provider", fb, "error", err)
		} else {
			fallback = client
			if closer != nil {
				closers = append(closers, closer)
			}
		}
	}

	logger.Info("llm provider configured", "primary", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	var client conversation.LLMClient = conversation.NewFallbackLLMClient(primary, fallback, logger)
	if observer != nil {
		client = conversation.NewInstrumentedLLMClient(client, observer)
	}
	return client, closeAll, nil
}

func buildProvider(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg aws.Config) (conversation.LLMClient, func() error, error) {
	switch provider {
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil, nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}
}
