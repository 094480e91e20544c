package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationReportShape(t *testing.T) {
	report := ValidationReport{
		Pass:      false,
		CheckedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Checks: []CheckResult{
			{Name: "tables_and_columns_present", Pass: true},
			{Name: "no_orphan_fact_rows", Pass: false, Detail: "fact_news has 3 rows with no matching security"},
		},
	}

	raw, err := json.Marshal(report)
	assert.NoError(t, err)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "pass")
	assert.Contains(t, decoded, "checked_at")
	assert.Contains(t, decoded, "checks")

	checks := decoded["checks"].([]any)
	assert.Len(t, checks, 2)

	passing := checks[0].(map[string]any)
	assert.Equal(t, "tables_and_columns_present", passing["name"])
	assert.NotContains(t, passing, "detail", "passing checks omit the detail field")

	failing := checks[1].(map[string]any)
	assert.Equal(t, false, failing["pass"])
	assert.Contains(t, failing["detail"], "no matching security")
}
