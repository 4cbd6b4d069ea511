package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingForPrefixMatch(t *testing.T) {
	p, ok := PricingFor("gemini-2.5-pro-preview-05-06")
	assert.True(t, ok)
	assert.Equal(t, 1.25, p.InputPerM)

	_, ok = PricingFor("mystery-model")
	assert.False(t, ok)
}

func TestEstimateCost(t *testing.T) {
	// 1M uncached input + 1M output on flash.
	got := EstimateCost("gemini-2.5-flash", 1_000_000, 0, 1_000_000)
	assert.InDelta(t, 0.30+2.50, got, 1e-9)

	// Cached tokens billed at the cached rate.
	cached := EstimateCost("gemini-2.5-flash", 1_000_000, 1_000_000, 0)
	assert.InDelta(t, 0.075, cached, 1e-9)

	assert.Zero(t, EstimateCost("mystery-model", 1000, 0, 1000))
}

func TestEstimateCostCachedExceedsPrompt(t *testing.T) {
	// Some providers report more cached than prompt tokens; the uncached
	// share clamps at zero.
	got := EstimateCost("gemini-2.5-flash", 100, 200, 0)
	assert.InDelta(t, float64(200)*0.075/1_000_000, got, 1e-12)
}
