package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/retry"
)

// ResilientConfig configures ResilientClient.
type ResilientConfig struct {
	MaxRetries int                  // retries for retryable errors; 0 disables retrying
	Breaker    CircuitBreakerConfig // Threshold <= 0 disables the breaker
}

// ResilientClient guards a provider client with a circuit breaker and retries
// of transient failures. Every failure it returns is an *Error.
type ResilientClient struct {
	inner   LLMClient
	breaker *CircuitBreaker
	retry   *retry.Config
	logger  *zap.Logger
}

// NewResilientClient wraps inner.
func NewResilientClient(inner LLMClient, cfg ResilientConfig, logger *zap.Logger) *ResilientClient {
	return &ResilientClient{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg.Breaker),
		retry:   retry.ModelCallConfig(cfg.MaxRetries),
		logger:  logger.Named("llm-resilient"),
	}
}

// GenerateResponse calls the wrapped client unless the breaker is open.
// Only errors that classify as retryable are retried.
func (c *ResilientClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	start := time.Now()

	result, err := retry.DoIfRetryableWithResult(ctx, c.retry, func() (*GenerateResponseResult, error) {
		if ok, err := c.breaker.Allow(); !ok {
			return nil, err
		}

		res, err := c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
		if err != nil {
			// Caller cancellation does not count against the provider.
			if !errors.Is(ctx.Err(), context.Canceled) {
				c.breaker.RecordFailure()
			}
			return nil, ClassifyError(err)
		}

		c.breaker.RecordSuccess()
		return res, nil
	})
	if err != nil {
		c.logger.Warn("Model call failed",
			zap.String("model", c.inner.GetModel()),
			zap.String("circuit", c.breaker.State().String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	return result, nil
}

// GetModel returns the wrapped client's model.
func (c *ResilientClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the wrapped client's endpoint.
func (c *ResilientClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

// Breaker exposes the circuit breaker for health reporting.
func (c *ResilientClient) Breaker() *CircuitBreaker {
	return c.breaker
}
