package core

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as mm:ss, or hh:mm:ss from one hour.
// Whole days are dropped from the hour field.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := (total / 3600) % 24
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
