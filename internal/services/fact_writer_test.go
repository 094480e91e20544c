package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/models"
)

func testWriter() *FactWriter {
	// validation paths never touch the repositories
	return &FactWriter{validate: validator.New()}
}

func TestValidateOHLC(t *testing.T) {
	testCases := []struct {
		name                    string
		open, high, low, close_ float64
		ok                      bool
	}{
		{"Well formed", 100, 101, 99, 100.5, true},
		{"Flat bar", 100, 100, 100, 100, true},
		{"Open at high", 101, 101, 99, 100, true},
		{"Close at low", 100, 101, 99, 99, true},
		{"Zero open", 0, 101, 99, 100, false},
		{"Negative low", 100, 101, -1, 100, false},
		{"High below low", 100, 98, 99, 100, false},
		{"Open above high", 102, 101, 99, 100, false},
		{"Open below low", 98.5, 101, 99, 100, false},
		{"Close above high", 100, 101, 99, 101.5, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateOHLC(tc.open, tc.high, tc.low, tc.close_)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, derr.ErrPayloadInvalid)
			}
		})
	}
}

func TestValidateOHLCNamesOffendingField(t *testing.T) {
	err := validateOHLC(100, 98, 99, 100)

	var ferr *derr.FieldError
	assert.True(t, errors.As(err, &ferr))
	assert.Equal(t, "high", ferr.Field)
}

func TestCheckStructRejectsBadTimeframe(t *testing.T) {
	w := testWriter()

	req := models.PriceBarRequest{
		Symbol:    "AAPL",
		Timeframe: "2min",
		Open:      100, High: 101, Low: 99, Close: 100.5,
		Volume: 1000,
	}
	err := w.checkStruct(req)

	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)
	var ferr *derr.FieldError
	assert.True(t, errors.As(err, &ferr))
	assert.Equal(t, "Timeframe", ferr.Field)
}

func TestCheckStructRejectsOutOfRangeSentiment(t *testing.T) {
	w := testWriter()

	req := models.NewsItemRequest{
		Symbol:    "AAPL",
		Headline:  "Earnings beat",
		URL:       "https://example.com/a",
		Sentiment: 1.5,
	}
	err := w.checkStruct(req)
	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)
}

func TestCheckStructAcceptsValidNews(t *testing.T) {
	w := testWriter()

	req := models.NewsItemRequest{
		Symbol:    "AAPL",
		Headline:  "Earnings beat",
		URL:       "https://example.com/a",
		Sentiment: -0.4,
		Catalyst:  models.CatalystModerate,
	}
	assert.NoError(t, w.checkStruct(req))
}

func TestPriceBarBatchRejectsBeforeWriting(t *testing.T) {
	w := testWriter()
	ctx := context.Background()

	_, err := w.WritePriceBarBatch(ctx, nil)
	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)

	// one inverted bar rejects the whole batch before resolution runs
	reqs := []models.PriceBarRequest{{
		Symbol:    "AAPL",
		Timeframe: "1min",
		Open:      100, High: 98, Low: 99, Close: 100,
		Volume: 1000,
	}}
	_, err = w.WritePriceBarBatch(ctx, reqs)
	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)
}

func TestIndicatorBatchRejectsBeforeWriting(t *testing.T) {
	w := testWriter()
	ctx := context.Background()

	_, err := w.WriteIndicatorBatch(ctx, nil)
	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)

	reqs := []models.IndicatorRequest{{
		Symbol:    "AAPL",
		Timeframe: "2min", // not a supported timeframe
		Name:      "rsi_14",
		Value:     55,
	}}
	_, err = w.WriteIndicatorBatch(ctx, reqs)
	assert.ErrorIs(t, err, derr.ErrPayloadInvalid)
}

func TestCatalystStrength(t *testing.T) {
	assert.True(t, models.CatalystNone.Valid())
	assert.True(t, models.CatalystMajor.Valid())
	assert.False(t, models.CatalystStrength("huge").Valid())

	// ordering must be strict for the feature matrix max-catalyst aggregate
	ordered := []models.CatalystStrength{
		models.CatalystNone, models.CatalystWeak, models.CatalystModerate,
		models.CatalystStrong, models.CatalystMajor,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
}
