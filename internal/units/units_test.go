package units

import (
	"math"
	"testing"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		units    string
		expected float64
	}{
		{"1 m to ft", 1.0, Feet, 3.28084},
		{"3.7 m lane to ft", 3.7, Feet, 12.139},
		{"10 m to m", 10.0, Meters, 10.0},
		{"unknown units default to m", 10.0, "yards", 10.0},
		{"negative offset to ft", -0.5, Feet, -1.64042},
		{"zero", 0.0, Feet, 0.0},
		{"1 km radius to ft", 1000.0, Feet, 3280.84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.meters, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.meters, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertDistance_Infinite(t *testing.T) {
	if got := ConvertDistance(math.Inf(1), Feet); !math.IsInf(got, 1) {
		t.Errorf("ConvertDistance(+Inf, ft) = %f, want +Inf", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid m", Meters, true},
		{"valid ft", Feet, true},
		{"invalid unit", "mph", false},
		{"empty string", "", false},
		{"case sensitive", "FT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestSymbol(t *testing.T) {
	if Symbol(Feet) != "ft" || Symbol(Meters) != "m" || Symbol("") != "m" {
		t.Error("unexpected unit symbols")
	}
}
