package models

import (
	"math"
	"strconv"
	"strings"
)

// Dataset identifies one of the measurement tables
type Dataset string

const (
	DatasetWater Dataset = "water"
	DatasetSoil  Dataset = "soil"
)

// soilCheckPrefix is the label soil exports put in front of the check number ("round").
const soilCheckPrefix = "ครั้งที่"

// HasUnit reports whether rows of this dataset carry a unit column
func (d Dataset) HasUnit() bool {
	return d == DatasetWater
}

// CheckNumberExtractor normalizes a raw check-number field before integer parsing
type CheckNumberExtractor func(raw string) string

// Extractor returns the check-number normalization for the dataset
func (d Dataset) Extractor() CheckNumberExtractor {
	if d == DatasetSoil {
		return ExtractSoilCheckNumber
	}
	return ExtractWaterCheckNumber
}

// ExtractWaterCheckNumber is the identity: water exports store the bare number.
func ExtractWaterCheckNumber(raw string) string {
	return raw
}

// ExtractSoilCheckNumber removes the "ครั้งที่" label and surrounding whitespace,
// so "ครั้งที่ 3" becomes "3".
func ExtractSoilCheckNumber(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, soilCheckPrefix, ""))
}

// MeasurementRow is one parameter measured at one check event. Text fields are trimmed.
type MeasurementRow struct {
	Parameter    string
	Location     string
	CheckNumber  string
	DisplayValue *string // nil when the store holds NULL
	NumericValue float64 // 0 when absent or malformed
	Unit         string  // water only
}

// ParseNumericValue converts a stored measurement to float64.
// NULL, empty, malformed and non-finite text all read as 0.
func ParseNumericValue(raw *string) float64 {
	if raw == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
