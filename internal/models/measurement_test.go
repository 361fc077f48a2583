package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumericValue(t *testing.T) {
	s := func(v string) *string { return &v }

	tests := []struct {
		name string
		raw  *string
		want float64
	}{
		{name: "null", raw: nil, want: 0},
		{name: "empty", raw: s(""), want: 0},
		{name: "plain", raw: s("7.25"), want: 7.25},
		{name: "padded", raw: s("  0.5 "), want: 0.5},
		{name: "negative", raw: s("-3"), want: -3},
		{name: "below detection limit", raw: s("<0.01"), want: 0},
		{name: "not a number", raw: s("ND"), want: 0},
		{name: "nan text", raw: s("NaN"), want: 0},
		{name: "infinity text", raw: s("Inf"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumericValue(tt.raw))
		})
	}
}

func TestExtractSoilCheckNumber(t *testing.T) {
	assert.Equal(t, "3", ExtractSoilCheckNumber("ครั้งที่ 3"))
	assert.Equal(t, "3", ExtractSoilCheckNumber("ครั้งที่3"))
	assert.Equal(t, "12", ExtractSoilCheckNumber(" 12 "))
	assert.Equal(t, "พิเศษ", ExtractSoilCheckNumber("ครั้งที่ พิเศษ"))
}

func TestDatasetOptions(t *testing.T) {
	assert.True(t, DatasetWater.HasUnit())
	assert.False(t, DatasetSoil.HasUnit())
	assert.Equal(t, "ครั้งที่ 1", DatasetWater.Extractor()("ครั้งที่ 1"))
	assert.Equal(t, "1", DatasetSoil.Extractor()("ครั้งที่ 1"))
}
