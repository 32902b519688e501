package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/wangwingzero/fly-podcast/internal/core/errors"
	"github.com/wangwingzero/fly-podcast/internal/platform/config"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = time.Minute
	rateLimiterBurst        = 5
	backoffInitialDelay     = 2 * time.Second
	backoffMaxDelay         = 30 * time.Second
	backoffMultiplier       = 2
)

type openaiClient struct {
	cfg         *config.Config
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI creates a Client backed by any OpenAI-compatible endpoint.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}

	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClientWithConfig(clientCfg),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), rateLimiterBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", apperrors.ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

func (c *openaiClient) CompleteJSON(ctx context.Context, req Request) (*Response, error) {
	if err := c.checkCircuit(); err != nil {
		return nil, err
	}

	retries := req.Retries
	if retries <= 0 {
		retries = c.cfg.LLMRetries
	}

	var lastErr error

	delay := backoffInitialDelay

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry interrupted: %w", ctx.Err())
			case <-time.After(delay):
				delay *= backoffMultiplier
				if delay > backoffMaxDelay {
					delay = backoffMaxDelay
				}
			}
		}

		resp, err := c.completeOnce(ctx, req)
		if err == nil {
			c.recordSuccess()

			return resp, nil
		}

		lastErr = err

		c.recordFailure()
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("LLM call failed")
	}

	return nil, lastErr
}

func (c *openaiClient) completeOnce(ctx context.Context, req Request) (*Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.LLMTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.LLMMaxTokens
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.cfg.LLMTemperature
	}

	started := time.Now()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(c.cfg.LLMModel).Observe(time.Since(started).Seconds())

	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.ErrEmptyResponse
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return nil, apperrors.ErrEmptyResponse
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNotJSON, err)
	}

	return &Response{Payload: payload, RawText: raw}, nil
}

// extractJSON tries to extract a JSON object from a response that might have
// extra text around it (markdown fences, preamble).
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}

// Ensure openaiClient implements Client.
var _ Client = (*openaiClient)(nil)
