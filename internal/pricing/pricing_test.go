package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/clawtop/internal/model"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name   string
		input  int64
		output int64
		want   float64
	}{
		{name: "zero", input: 0, output: 0, want: 0},
		{name: "input only", input: 1_000_000, output: 0, want: 2.50},
		{name: "output only", input: 0, output: 1_000_000, want: 10},
		{name: "mixed", input: 1000, output: 500, want: (1000*2.5 + 500*10) / 1e6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateCost(tt.input, tt.output, DefaultPricing), 1e-12)
		})
	}
}

func TestEstimateCost_Monotonic(t *testing.T) {
	counts := []int64{0, 1, 10, 999, 1000, 50_000, 1_000_000, 123_456_789}
	for _, p := range []model.Pricing{DefaultPricing, presets["claude-opus-4-5"], {}} {
		for i := 1; i < len(counts); i++ {
			for _, other := range counts {
				assert.GreaterOrEqual(t, EstimateCost(counts[i], other, p), EstimateCost(counts[i-1], other, p))
				assert.GreaterOrEqual(t, EstimateCost(other, counts[i], p), EstimateCost(other, counts[i-1], p))
			}
		}
	}
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("")
	require.True(t, ok)
	assert.Equal(t, DefaultPricing, p)

	p, ok = Lookup("claude-sonnet-4-5")
	require.True(t, ok)
	assert.Equal(t, 3.0, p.InputPerMillion)

	p, ok = Lookup("Anthropic/Claude_Sonnet_4.5")
	require.True(t, ok)
	assert.Equal(t, 15.0, p.OutputPerMillion)

	p, ok = Lookup("no-such-model")
	assert.False(t, ok)
	assert.Equal(t, DefaultPricing, p)
}

func TestPresets_Sorted(t *testing.T) {
	names := Presets()
	require.Contains(t, names, DefaultPreset)
	assert.IsNonDecreasing(t, names)
}
