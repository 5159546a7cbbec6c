package services

import (
	"encoding/json"
	"testing"

	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalDistinguishesAbsentAndNull(t *testing.T) {
	var p ObligationPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Report", "due_rule": null, "due_date": "2025-06-01"}`), &p))

	assert.True(t, p.Name.Set)
	assert.Equal(t, "Report", *p.Name.Value)

	assert.True(t, p.DueRule.Set)
	assert.Nil(t, p.DueRule.Value)

	require.NotNil(t, p.DueDate.Value)
	assert.True(t, p.DueDate.Value.Equal(models.NewDate(2025, 6, 1)))

	assert.False(t, p.Frequency.Set)
	assert.Nil(t, p.Frequency.Value)
}

func TestOptionalRejectsBadValues(t *testing.T) {
	var p ObligationPatch
	assert.Error(t, json.Unmarshal([]byte(`{"due_date": "June 1st"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"source_page": "two"}`), &p))
}

func TestOptionalMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A Optional[int]    `json:"a"`
		B Optional[string] `json:"b"`
	}{A: Some(3), B: Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 3, "b": null}`, string(out))
}

func TestPatchApplyDiff(t *testing.T) {
	rule := "45 days after quarter end"
	o := &models.Obligation{Name: "Report", Frequency: models.FrequencyOnce, DueRule: &rule}
	p := ObligationPatch{
		Name:      Some("Report"),
		Frequency: Some(models.FrequencyMonthly),
		DueRule:   Null[string](),
	}

	changes, err := p.apply(o)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.FieldChange{
		"frequency": {From: models.FrequencyOnce, To: models.FrequencyMonthly},
		"due_rule":  {From: rule, To: nil},
	}, changes)
	assert.Equal(t, models.FrequencyMonthly, o.Frequency)
	assert.Nil(t, o.DueRule)
}
