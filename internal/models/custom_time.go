package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FlexibleTime is a custom time type that unmarshals both RFC3339 timestamps
// and "YYYY-MM-DD" dates (interpreted as midnight UTC). RFC3339 always
// carries an explicit offset, so every accepted value has a known zone.
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexibleTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)

	// Try parsing as RFC3339 full timestamp first
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		f.Time = t
		return nil
	}

	// If that fails, try parsing as a date-only string
	t, err = time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("timestamp must be RFC3339 or YYYY-MM-DD: %w", err)
	}
	f.Time = t.UTC()
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (f FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Time)
}
