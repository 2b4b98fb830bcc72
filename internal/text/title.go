package text

import (
	"fmt"
	"strconv"
	"strings"
)

const titleSeparators = "-~|*%#"

// ParseTitle splits an "Artist - Album" style title at the first separator.
// Without a separator both halves are the whole normalized title; the caller
// decides which one is meaningful.
func ParseTitle(title string) (string, string) {
	idx := strings.IndexAny(title, titleSeparators)
	if idx < 0 {
		whole := Normalize(title)
		return whole, whole
	}
	return Normalize(title[:idx]), Normalize(title[idx+1:])
}

// ToSeconds converts "SS", "MM:SS" or "H:MM:SS" to seconds.
func ToSeconds(clock string) (int, error) {
	fields := strings.Split(strings.TrimSpace(clock), ":")
	if len(fields) > 3 {
		return 0, fmt.Errorf("clock time %q has more than three fields", clock)
	}

	multiplier := 1
	total := 0
	for i := len(fields) - 1; i >= 0; i-- {
		value, err := strconv.Atoi(fields[i])
		if err != nil {
			return 0, fmt.Errorf("parse clock time %q: %w", clock, err)
		}
		total += value * multiplier
		multiplier *= 60
	}
	return total, nil
}

// FormatHMS renders seconds as H:MM:SS.
func FormatHMS(seconds float64) string {
	whole := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", whole/3600, (whole/60)%60, whole%60)
}
