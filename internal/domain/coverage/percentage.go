package coverage

import "fmt"

// Percentage is a value object for a calculated coverage percentage,
// rounded to a configurable number of decimal places at render time.
type Percentage struct {
	value float64
}

// NewPercentage wraps a raw ratio*100 value.
func NewPercentage(value float64) Percentage {
	return Percentage{value: value}
}

// FromRatio computes a percentage from covered/total, returning 0 when
// total is 0.
func FromRatio(covered, total int) Percentage {
	if total == 0 {
		return Percentage{value: 0}
	}
	return Percentage{value: float64(covered) / float64(total) * 100}
}

// Value returns the raw percentage value.
func (p Percentage) Value() float64 {
	return p.value
}

// Format renders the percentage with the given number of decimal places.
func (p Percentage) Format(precision int) string {
	return fmt.Sprintf("%.*f%%", precision, p.value)
}
