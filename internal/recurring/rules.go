package recurring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/models"
	"github.com/shopspring/decimal"
)

// Condition types.
const (
	ConditionAlways     = "always"
	ConditionTotalAbove = "total_above"
	ConditionTotalBelow = "total_below"
)

// Action types.
const (
	ActionApplyDiscount = "apply_discount"
	ActionAddNote       = "add_note"
	ActionSetDueDays    = "set_due_days"
)

// Rule adjusts a generated invoice when its condition holds.
//
//	[{"condition":{"type":"total_above","amount":1000},
//	  "action":{"type":"apply_discount","percent":5}}]
type Rule struct {
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
}

// Condition is evaluated against the invoice total at the time the rule runs.
type Condition struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount,omitempty"`
}

// Action is a tagged variant; only the field matching Type is read.
type Action struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percent,omitempty"`
	Note    string  `json:"note,omitempty"`
	Days    *int    `json:"days,omitempty"`
}

// ParseRules decodes and validates a rules payload. An empty payload or JSON
// null yields no rules. Unknown fields are rejected.
func ParseRules(raw []byte) ([]Rule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var rules []Rule
	if err := dec.Decode(&rules); err != nil {
		return nil, apperr.NewValidationError("rules", string(trimmed), "must be a JSON array of rules: "+err.Error())
	}
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, apperr.NewValidationError(fmt.Sprintf("rules[%d]", i), r, err.Error())
		}
	}
	return rules, nil
}

func (r Rule) validate() error {
	switch r.Condition.Type {
	case ConditionAlways:
	case ConditionTotalAbove, ConditionTotalBelow:
		if r.Condition.Amount < 0 {
			return fmt.Errorf("condition amount must be non-negative")
		}
	default:
		return fmt.Errorf("unknown condition type %q", r.Condition.Type)
	}

	switch r.Action.Type {
	case ActionApplyDiscount:
		if r.Action.Percent <= 0 || r.Action.Percent > 100 {
			return fmt.Errorf("discount percent must be in (0, 100]")
		}
	case ActionAddNote:
		if strings.TrimSpace(r.Action.Note) == "" {
			return fmt.Errorf("note must not be empty")
		}
	case ActionSetDueDays:
		if r.Action.Days == nil || *r.Action.Days < 0 {
			return fmt.Errorf("days must be a non-negative integer")
		}
	default:
		return fmt.Errorf("unknown action type %q", r.Action.Type)
	}
	return nil
}

// Matches reports whether the condition holds for the given total.
func (c Condition) Matches(total float64) bool {
	switch c.Type {
	case ConditionAlways:
		return true
	case ConditionTotalAbove:
		return total > c.Amount
	case ConditionTotalBelow:
		return total < c.Amount
	}
	return false
}

// ApplyRules runs each rule in order against a freshly built invoice.
// Later conditions see the totals produced by earlier actions.
func ApplyRules(inv *models.Invoice, rules []Rule) {
	for _, r := range rules {
		if !r.Condition.Matches(inv.Total) {
			continue
		}
		switch r.Action.Type {
		case ActionApplyDiscount:
			applyDiscount(inv, r.Action.Percent)
		case ActionAddNote:
			appendNote(inv, r.Action.Note)
		case ActionSetDueDays:
			due := inv.IssueDate.AddDate(0, 0, *r.Action.Days)
			inv.DueDate = &due
		}
	}
}

func applyDiscount(inv *models.Invoice, percent float64) {
	factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100))
	subtotal := decimal.NewFromFloat(inv.Subtotal).Mul(factor).Round(2)
	tax := decimal.NewFromFloat(inv.Tax).Mul(factor).Round(2)
	inv.Subtotal, _ = subtotal.Float64()
	inv.Tax, _ = tax.Float64()
	inv.Total, _ = subtotal.Add(tax).Float64()
}

func appendNote(inv *models.Invoice, note string) {
	if inv.Notes == nil || *inv.Notes == "" {
		n := note
		inv.Notes = &n
		return
	}
	n := *inv.Notes + "\n" + note
	inv.Notes = &n
}
