package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseOffset turns an offset literal into a duration before show start.
// Accepted forms: "<n>d", "<n>h", "<n>m" (case-insensitive, decimals
// allowed, e.g. "4.5h") and a bare number, read as hours.
func ParseOffset(literal string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(literal))
	if s == "" {
		return 0, fmt.Errorf("offset literal is empty")
	}

	unit := time.Hour
	switch s[len(s)-1] {
	case 'd':
		unit = 24 * time.Hour
		s = s[:len(s)-1]
	case 'h':
		s = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset literal %q", literal)
	}
	if value < 0 {
		return 0, fmt.Errorf("offset literal %q must not be negative", literal)
	}

	return time.Duration(value * float64(unit)), nil
}

// ValidateOffsets checks a full preference list at write time, so the
// matcher can assume every stored literal parses.
func ValidateOffsets(literals []string) error {
	if len(literals) == 0 {
		return fmt.Errorf("at least one offset is required")
	}

	for _, literal := range literals {
		if _, err := ParseOffset(literal); err != nil {
			return err
		}
	}
	return nil
}
