package model

import "strings"

// Pricing holds per-million-token USD rates for one model. Cached prompt
// tokens are billed at the cached rate instead of the input rate.
type Pricing struct {
	InputPerM  float64
	CachedPerM float64
	OutputPerM float64
}

// pricingTable covers the models the engine routes to out of the box.
// Unknown models estimate at zero rather than guessing.
var pricingTable = map[string]Pricing{
	"gemini-2.5-pro":     {InputPerM: 1.25, CachedPerM: 0.31, OutputPerM: 10.00},
	"gemini-2.5-flash":   {InputPerM: 0.30, CachedPerM: 0.075, OutputPerM: 2.50},
	"claude-sonnet-4":    {InputPerM: 3.00, CachedPerM: 0.30, OutputPerM: 15.00},
	"claude-3-5-haiku":   {InputPerM: 0.80, CachedPerM: 0.08, OutputPerM: 4.00},
	"gpt-4.1":            {InputPerM: 2.00, CachedPerM: 0.50, OutputPerM: 8.00},
	"gpt-4.1-mini":       {InputPerM: 0.40, CachedPerM: 0.10, OutputPerM: 1.60},
}

// PricingFor returns the rate card for a model name, matching on prefix so
// dated variants ("gemini-2.5-pro-preview-05-06") resolve to their base
// model.
func PricingFor(name string) (Pricing, bool) {
	if p, ok := pricingTable[name]; ok {
		return p, true
	}
	for base, p := range pricingTable {
		if strings.HasPrefix(name, base) {
			return p, true
		}
	}
	return Pricing{}, false
}

// EstimateCost computes the USD cost of one call. Models without a rate
// card cost zero.
func EstimateCost(name string, promptTokens, cachedTokens, completionTokens int) float64 {
	p, ok := PricingFor(name)
	if !ok {
		return 0
	}
	uncached := promptTokens - cachedTokens
	if uncached < 0 {
		uncached = 0
	}
	const m = 1_000_000
	return float64(uncached)*p.InputPerM/m +
		float64(cachedTokens)*p.CachedPerM/m +
		float64(completionTokens)*p.OutputPerM/m
}
