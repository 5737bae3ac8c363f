// Package cost attributes spend to generative answering calls.
package cost

import (
	"sync"

	"go.uber.org/zap"
)

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Usage is the token count of a single call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Calculator prices token usage and keeps a running total for the process.
type Calculator struct {
	rates map[string]ModelRate

	mu    sync.Mutex
	total float64
	calls int
}

// NewCalculator creates a Calculator with the given per-model rates.
func NewCalculator(rates map[string]ModelRate) *Calculator {
	return &Calculator{rates: rates}
}

// Price returns the USD cost of usage on model. Unknown models cost 0.
func (c *Calculator) Price(model string, u Usage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*rate.Input + (float64(u.OutputTokens)/1e6)*rate.Output
}

// Record prices a call, adds it to the running total and logs it.
func (c *Calculator) Record(model, phase string, u Usage) float64 {
	usd := c.Price(model, u)

	c.mu.Lock()
	c.total += usd
	c.calls++
	c.mu.Unlock()

	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	return usd
}

// Total returns the accumulated cost and number of recorded calls.
func (c *Calculator) Total() (usd float64, calls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.calls
}

// DefaultRates returns list prices for the models the answering service uses.
func DefaultRates() map[string]ModelRate {
	return map[string]ModelRate{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"gemini-1.5-flash-001":       {Input: 0.075, Output: 0.30},
		"gemini-1.5-pro-001":         {Input: 1.25, Output: 5.00},
	}
}
