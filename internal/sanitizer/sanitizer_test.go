package sanitizer

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"letters", "abc", 0},
		{"currency text", "$1,234.56", 1234.56},
		{"negative", -5, -5},
		{"negative string", "-5", -5},
		{"NaN", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 0},
		{"negative infinity", math.Inf(-1), 0},
		{"plain float", 12.5, 12.5},
		{"int64", int64(7), 7},
		{"json number", json.Number("3.25"), 3.25},
		{"decimal", decimal.RequireFromString("10.10"), 10.1},
		{"two minus signs", "1-2", 0},
		{"lone dot", ".", 0},
		{"bool", true, 0},
		{"struct", struct{}{}, 0},
		{"spaces and units", " 15 shares ", 15},
		{"exponent letter dropped", "1e400", 1400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.value)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNumber_NilPointers(t *testing.T) {
	var f *float64
	var s *string
	assert.Equal(t, 0.0, Number(f))
	assert.Equal(t, 0.0, Number(s))
}

func TestText(t *testing.T) {
	assert.Equal(t, "Apple Inc.", Text("  <b>Apple</b> Inc. "))
	assert.Equal(t, "", Text("<script>alert(1)</script>"))
	assert.Equal(t, "AT&T", Text("AT&T"))
}
