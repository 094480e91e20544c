package services

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: any bar whose prices are positive and whose open and close lie
// within [low, high] passes validation, and any bar with high < low fails,
// regardless of the specific values.
func TestProperty_OHLCValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	priceGen := gen.Float64Range(0.01, 10000)
	fracGen := gen.Float64Range(0, 1)

	properties.Property("well-formed bars always pass", prop.ForAll(
		func(low, spread, openFrac, closeFrac float64) bool {
			high := low + spread
			open := low + openFrac*spread
			close := low + closeFrac*spread
			return validateOHLC(open, high, low, close) == nil
		},
		priceGen,
		gen.Float64Range(0, 500),
		fracGen,
		fracGen,
	))

	properties.Property("inverted high/low always fails", prop.ForAll(
		func(low, gap float64) bool {
			high := low - gap
			return validateOHLC(low, high, low, low) != nil
		},
		priceGen,
		gen.Float64Range(0.01, 500),
	))

	properties.Property("non-positive prices always fail", prop.ForAll(
		func(price float64) bool {
			return validateOHLC(price, price, price, price) != nil
		},
		gen.Float64Range(-10000, 0),
	))

	properties.TestingRun(t)
}

// Property: symbol normalization is idempotent, and its output always
// satisfies the pattern it enforces on input.
func TestProperty_SymbolNormalization(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbolGen := gen.RegexMatch(`[A-Za-z0-9][A-Za-z0-9.\-]{0,11}`)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(raw string) bool {
			once, err := NormalizeSymbol(raw)
			if err != nil {
				return true // rejected input stays rejected; nothing to re-check
			}
			twice, err := NormalizeSymbol(once)
			return err == nil && once == twice
		},
		symbolGen,
	))

	properties.Property("accepted output matches the canonical pattern", prop.ForAll(
		func(raw string) bool {
			symbol, err := NormalizeSymbol(raw)
			if err != nil {
				return true
			}
			return symbolPattern.MatchString(symbol)
		},
		symbolGen,
	))

	properties.TestingRun(t)
}
