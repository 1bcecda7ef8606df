// Package cost converts AI API usage into persisted operation records and
// aggregates spend across a project's execution history.
package cost

import (
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/claudestep/claudestep/internal/types"
)

// Pricing is the cost per million tokens for one model family.
// See: https://www.anthropic.com/pricing
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var (
	// SonnetPricing covers the Sonnet model family.
	SonnetPricing = Pricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}
	// HaikuPricing covers the Haiku model family.
	HaikuPricing = Pricing{InputPerMTok: 0.80, OutputPerMTok: 4.00}
	// OpusPricing covers the Opus model family.
	OpusPricing = Pricing{InputPerMTok: 15.00, OutputPerMTok: 75.00}
)

// PricingFor returns the pricing for a model identifier. Unknown models fall
// back to Sonnet pricing, which overestimates for cheaper models rather than
// under-reporting spend.
func PricingFor(model string) Pricing {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "haiku"):
		return HaikuPricing
	case strings.Contains(lower, "opus"):
		return OpusPricing
	default:
		return SonnetPricing
	}
}

// Cost computes the dollar cost for a token count under this pricing.
func (p Pricing) Cost(tokensIn, tokensOut int64) float64 {
	return float64(tokensIn)*p.InputPerMTok/1_000_000 + float64(tokensOut)*p.OutputPerMTok/1_000_000
}

// OperationFromUsage builds an AIOperation from an API response's usage
// block. kind names what the call was for ("implement", "review", ...).
func OperationFromUsage(kind, model string, usage anthropic.Usage, duration time.Duration, at time.Time) types.AIOperation {
	pricing := PricingFor(model)
	return types.AIOperation{
		Kind:            kind,
		CostUSD:         pricing.Cost(usage.InputTokens, usage.OutputTokens),
		TokensIn:        usage.InputTokens,
		TokensOut:       usage.OutputTokens,
		DurationSeconds: duration.Seconds(),
		CreatedAt:       at.UTC(),
	}
}
