// Package duration converts between the short duration strings typed by
// organizers ("10s", "5m", "2h", "1d") and elapsed seconds.
package duration

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxSeconds is the longest giveaway accepted by the command surface (8 days).
const MaxSeconds = 8 * 86400

// ErrInvalidFormat is returned when text is not <digits><unit>.
var ErrInvalidFormat = errors.New("invalid duration format")

var multipliers = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// Parse converts text such as "90s" or "2d" into seconds. The whole string
// must be a non-negative integer immediately followed by one of s, m, h or d.
// No range check is applied.
func Parse(text string) (int, error) {
	if len(text) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}

	unit := text[len(text)-1]
	mult, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidFormat, text)
	}

	digits := text[:len(text)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
		}
	}

	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}
	if value > int(^uint32(0))/mult {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidFormat, text)
	}
	return value * mult, nil
}

// Format renders seconds as H:MM:SS. Hours are not wrapped into days.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
