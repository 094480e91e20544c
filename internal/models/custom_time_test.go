package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleTimeUnmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "RFC3339 UTC",
			input:    `"2025-01-02T14:30:00Z"`,
			expected: time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with offset",
			input:    `"2025-01-02T09:30:00-05:00"`,
			expected: time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC),
		},
		{
			name:     "Date only becomes midnight UTC",
			input:    `"2025-01-02"`,
			expected: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var ft FlexibleTime
			err := json.Unmarshal([]byte(tc.input), &ft)
			assert.NoError(t, err)
			assert.True(t, ft.Time.Equal(tc.expected), "got %s want %s", ft.Time, tc.expected)
		})
	}
}

func TestFlexibleTimeUnmarshalRejectsGarbage(t *testing.T) {
	var ft FlexibleTime
	assert.Error(t, json.Unmarshal([]byte(`"01/02/2025"`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`"not a time"`), &ft))
}
