package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	derr "github.com/epeers/datamart/internal/errors"
)

func TestNormalizeSymbol(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain ticker", "AAPL", "AAPL"},
		{"Lower case", "tsla", "TSLA"},
		{"Surrounding whitespace", "  spy \n", "SPY"},
		{"Class share dot", "brk.b", "BRK.B"},
		{"Hyphenated", "BF-B", "BF-B"},
		{"Single character", "F", "F"},
		{"Digits", "3M2", "3M2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNormalizeSymbolRejects(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace only", "   "},
		{"Embedded space", "AA PL"},
		{"Leading dot", ".AAPL"},
		{"Leading hyphen", "-AAPL"},
		{"Too long", "ABCDEFGHIJKLM"},
		{"Unicode", "ÄAPL"},
		{"SQL-ish", "AAPL;DROP"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeSymbol(tc.input)
			assert.ErrorIs(t, err, derr.ErrResolutionFailed)
		})
	}
}

func TestNormalizeSymbolIdempotent(t *testing.T) {
	once, err := NormalizeSymbol(" msft ")
	assert.NoError(t, err)
	twice, err := NormalizeSymbol(once)
	assert.NoError(t, err)
	assert.Equal(t, once, twice)
}
