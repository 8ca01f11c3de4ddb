// Package units provides shared constants and validation for distance units
package units

import "math"

// Unit constants
const (
	Meters = "m"
	Feet   = "ft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Meters, Feet}

const feetPerMeter = 3.280839895013123

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, ft"
}

// ConvertDistance converts a distance from meters to the target units.
// Radii and offsets are computed in meters; an infinite radius stays infinite.
func ConvertDistance(meters float64, targetUnits string) float64 {
	if math.IsInf(meters, 0) || math.IsNaN(meters) {
		return meters
	}
	switch targetUnits {
	case Feet:
		return meters * feetPerMeter
	case Meters:
		return meters
	default:
		return meters
	}
}

// Symbol returns the short label printed after converted values.
func Symbol(unit string) string {
	if unit == Feet {
		return "ft"
	}
	return "m"
}
