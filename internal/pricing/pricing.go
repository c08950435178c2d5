// Package pricing estimates session cost from token counts.
//
// The estimate is deliberately approximate: a single flat input/output price
// is applied to every session regardless of the model that served it, and
// cache reads/writes are not modeled. It is useful for ranking and rough
// budgeting, never for reconciling a bill.
package pricing

import (
	"sort"
	"strings"

	"github.com/zhaobenny/clawtop/internal/model"
)

// DefaultPreset is the name of the built-in blended price
const DefaultPreset = "default"

// DefaultPricing assumes $2.50 per million input and $10 per million output tokens
var DefaultPricing = model.Pricing{
	InputPerMillion:  2.50,
	OutputPerMillion: 10.0,
}

var presets = map[string]model.Pricing{
	DefaultPreset: DefaultPricing,

	"claude-opus-4-5":   {InputPerMillion: 5, OutputPerMillion: 25},
	"claude-opus-4-1":   {InputPerMillion: 15, OutputPerMillion: 75},
	"claude-opus-4":     {InputPerMillion: 15, OutputPerMillion: 75},
	"claude-sonnet-4-5": {InputPerMillion: 3, OutputPerMillion: 15},
	"claude-sonnet-4":   {InputPerMillion: 3, OutputPerMillion: 15},
	"claude-haiku-4-5":  {InputPerMillion: 1, OutputPerMillion: 5},
	"claude-3-5-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4},

	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":     {InputPerMillion: 2, OutputPerMillion: 8},
}

// EstimateCost returns the approximate cost in dollars for the given token counts
func EstimateCost(inputTokens, outputTokens int64, p model.Pricing) float64 {
	return (float64(inputTokens)*p.InputPerMillion + float64(outputTokens)*p.OutputPerMillion) / 1_000_000
}

// Lookup returns the preset with the given name. Unknown names return
// DefaultPricing and false.
func Lookup(name string) (model.Pricing, bool) {
	if name == "" {
		return DefaultPricing, true
	}
	if p, ok := presets[name]; ok {
		return p, true
	}

	// Try to find a matching preset by normalizing the name
	normalized := normalizeModelName(name)
	for presetName, p := range presets {
		if normalizeModelName(presetName) == normalized {
			return p, true
		}
	}

	return DefaultPricing, false
}

// Presets returns the sorted names of all built-in presets
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeModelName normalizes model names for matching
func normalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "anthropic/")
	name = strings.TrimPrefix(name, "openai/")
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, ".", "")
	return name
}
