package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// WorkersFormatMessage is shown under the number of workers field when its value cannot be parsed.
const WorkersFormatMessage = "Enter a single positive number (e.g., 5) or a valid range (e.g., 3–10). " +
	"In a range, the minimum value must be less than or equal to the maximum, and both must be at least 1."

// ErrInvalidWorkers is returned when a number of workers value is neither a positive integer nor a valid range.
var ErrInvalidWorkers = errors.New(WorkersFormatMessage)

// NumberOfWorkers is either a single count (Min == Max) or an inclusive range.
type NumberOfWorkers struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsRange reports whether the value spans more than one count.
func (w NumberOfWorkers) IsRange() bool {
	return w.Min != w.Max
}

// String renders the value the way a contributor types it: "5" or "3-10".
func (w NumberOfWorkers) String() string {
	if !w.IsRange() {
		return strconv.Itoa(w.Min)
	}
	return fmt.Sprintf("%d-%d", w.Min, w.Max)
}

// ParseNumberOfWorkers parses "5", "3-10" or "3–10" (en dash).
// Both bounds must be at least 1 and min must not exceed max.
func ParseNumberOfWorkers(raw string) (NumberOfWorkers, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NumberOfWorkers{}, ErrInvalidWorkers
	}

	sep := strings.IndexAny(s, "-–")
	if sep < 0 {
		n, ok := positiveInt(s)
		if !ok {
			return NumberOfWorkers{}, ErrInvalidWorkers
		}
		return NumberOfWorkers{Min: n, Max: n}, nil
	}

	_, width := utf8.DecodeRuneInString(s[sep:])
	lo, okLo := positiveInt(strings.TrimSpace(s[:sep]))
	hi, okHi := positiveInt(strings.TrimSpace(s[sep+width:]))
	if !okLo || !okHi || lo > hi {
		return NumberOfWorkers{}, ErrInvalidWorkers
	}
	return NumberOfWorkers{Min: lo, Max: hi}, nil
}

// ValidWorkersInput reports whether raw is acceptable for the optional field.
// The empty string is valid.
func ValidWorkersInput(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, err := ParseNumberOfWorkers(raw)
	return err == nil
}

// MarshalJSON writes a bare number for a single count and {"min","max"} for a range.
func (w NumberOfWorkers) MarshalJSON() ([]byte, error) {
	if !w.IsRange() {
		return json.Marshal(w.Min)
	}
	type rangeForm NumberOfWorkers
	return json.Marshal(rangeForm(w))
}

// UnmarshalJSON accepts a number, a numeric string ("5", "3-10") or a {"min","max"} object.
func (w *NumberOfWorkers) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 1 {
			return ErrInvalidWorkers
		}
		*w = NumberOfWorkers{Min: n, Max: n}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseNumberOfWorkers(s)
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	}

	type rangeForm NumberOfWorkers
	var r rangeForm
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("number of workers: %w", err)
	}
	if r.Min < 1 || r.Max < r.Min {
		return ErrInvalidWorkers
	}
	*w = NumberOfWorkers(r)
	return nil
}

func positiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
