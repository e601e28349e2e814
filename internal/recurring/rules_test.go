package recurring

import (
	"testing"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules_Empty(t *testing.T) {
	for _, raw := range []string{"", "  ", "null"} {
		rules, err := ParseRules([]byte(raw))
		require.NoError(t, err)
		assert.Nil(t, rules)
	}
}

func TestParseRules_Valid(t *testing.T) {
	raw := `[
		{"condition":{"type":"total_above","amount":1000},"action":{"type":"apply_discount","percent":5}},
		{"condition":{"type":"always"},"action":{"type":"add_note","note":"Thank you"}},
		{"condition":{"type":"always"},"action":{"type":"set_due_days","days":0}}
	]`

	rules, err := ParseRules([]byte(raw))

	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, ConditionTotalAbove, rules[0].Condition.Type)
	assert.Equal(t, 5.0, rules[0].Action.Percent)
	assert.Equal(t, "Thank you", rules[1].Action.Note)
	require.NotNil(t, rules[2].Action.Days)
	assert.Equal(t, 0, *rules[2].Action.Days)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":          `{{`,
		"object not array":  `{"condition":{"type":"always"}}`,
		"unknown field":     `[{"condition":{"type":"always"},"action":{"type":"add_note","note":"x"},"extra":1}]`,
		"unknown condition": `[{"condition":{"type":"sometimes"},"action":{"type":"add_note","note":"x"}}]`,
		"unknown action":    `[{"condition":{"type":"always"},"action":{"type":"send_email"}}]`,
		"discount too big":  `[{"condition":{"type":"always"},"action":{"type":"apply_discount","percent":150}}]`,
		"discount zero":     `[{"condition":{"type":"always"},"action":{"type":"apply_discount","percent":0}}]`,
		"empty note":        `[{"condition":{"type":"always"},"action":{"type":"add_note","note":"  "}}]`,
		"missing days":      `[{"condition":{"type":"always"},"action":{"type":"set_due_days"}}]`,
		"negative days":     `[{"condition":{"type":"always"},"action":{"type":"set_due_days","days":-1}}]`,
		"negative amount":   `[{"condition":{"type":"total_below","amount":-5},"action":{"type":"add_note","note":"x"}}]`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(raw))
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestApplyRules(t *testing.T) {
	issue := date(2024, 5, 1)
	inv := &models.Invoice{IssueDate: issue, Subtotal: 1000, Tax: 200, Total: 1200}
	days := 14
	rules := []Rule{
		{Condition: Condition{Type: ConditionTotalAbove, Amount: 1000}, Action: Action{Type: ActionApplyDiscount, Percent: 10}},
		// evaluated after the discount: 1080 is not below 1000
		{Condition: Condition{Type: ConditionTotalBelow, Amount: 1000}, Action: Action{Type: ActionAddNote, Note: "small order"}},
		{Condition: Condition{Type: ConditionAlways}, Action: Action{Type: ActionAddNote, Note: "loyalty discount"}},
		{Condition: Condition{Type: ConditionAlways}, Action: Action{Type: ActionSetDueDays, Days: &days}},
	}

	ApplyRules(inv, rules)

	assert.Equal(t, 900.0, inv.Subtotal)
	assert.Equal(t, 180.0, inv.Tax)
	assert.Equal(t, 1080.0, inv.Total)
	require.NotNil(t, inv.Notes)
	assert.Equal(t, "loyalty discount", *inv.Notes)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, date(2024, 5, 15), *inv.DueDate)
}

func TestApplyRules_AppendsToExistingNotes(t *testing.T) {
	existing := "Monthly retainer"
	inv := &models.Invoice{Total: 10, Notes: &existing}

	ApplyRules(inv, []Rule{{Condition: Condition{Type: ConditionAlways}, Action: Action{Type: ActionAddNote, Note: "Net 30"}}})

	assert.Equal(t, "Monthly retainer\nNet 30", *inv.Notes)
	assert.Equal(t, "Monthly retainer", existing)
}

func TestApplyRules_NoRulesLeavesInvoice(t *testing.T) {
	inv := &models.Invoice{Subtotal: 50, Tax: 5, Total: 55}
	ApplyRules(inv, nil)
	assert.Equal(t, 55.0, inv.Total)
	assert.Nil(t, inv.Notes)
}
