// Package progress converts between reading positions and the persisted
// "<n>%" progress string.
package progress

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a persisted progress value has no leading integer
var ErrMalformed = errors.New("malformed progress value")

// Percent is a whole reading percentage in [0, 100]
type Percent int

// Min and Max bound every Percent
const (
	Min Percent = 0
	Max Percent = 100
)

// String returns the canonical persisted form, e.g. "42%"
func (p Percent) String() string {
	return strconv.Itoa(int(p.clamp())) + "%"
}

// Started reports whether the percentage means the book has been opened before
func (p Percent) Started() bool {
	return p > 0
}

func (p Percent) clamp() Percent {
	if p < Min {
		return Min
	}
	if p > Max {
		return Max
	}
	return p
}

// Parse reads the leading integer of a persisted value. "42%", "42" and
// "42.7%" all yield 42. Values outside [0, 100] are clamped.
func Parse(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, "%", "", 1)
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, ErrMalformed
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Only overflow gets here; treat it as a full read or nothing by sign
		if s[0] == '-' {
			return Min, nil
		}
		return Max, nil
	}
	return Percent(n).clamp(), nil
}

// FromPosition derives round(pos/total*100). A total of zero or less means
// there is nothing meaningful to persist and yields 0.
func FromPosition(pos, total int) Percent {
	if total <= 0 || pos <= 0 {
		return Min
	}
	return Percent(roundHalfUp(float64(pos) * 100 / float64(total))).clamp()
}

// ToPosition converts a percentage to a 1-based position in a document of
// total positions. It returns 0 (start from the beginning) when p is zero or
// the total is unknown; otherwise the result is in [1, total].
func ToPosition(p Percent, total int) int {
	p = p.clamp()
	if p == Min || total <= 0 {
		return 0
	}
	pos := roundHalfUp(float64(p) * float64(total) / 100)
	return Clamp(pos, total)
}

// Clamp keeps pos in [1, total]. With an unknown total only the lower bound applies.
func Clamp(pos, total int) int {
	if pos < 1 {
		pos = 1
	}
	if total > 0 && pos > total {
		pos = total
	}
	return pos
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
