package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/policy"
	"github.com/diewo77/billflow/internal/recurring"
	"github.com/diewo77/billflow/internal/validation"
)

// RecurringService manages recurring invoice templates and the invoices they produce.
type RecurringService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewRecurringService(db *gorm.DB, m *metrics.Metrics) *RecurringService {
	return &RecurringService{
		db:      db,
		metrics: m,
		log:     logger.WithComponent("recurring"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecurringItemInput is one template line.
type RecurringItemInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// CreateRecurringInput is the payload for a new template.
// When Items are given the subtotal is computed from them.
type CreateRecurringInput struct {
	ClientID       string                `json:"client_id"`
	TemplateNumber string                `json:"template_number"`
	Frequency      models.Frequency      `json:"frequency"`
	NextDueDate    time.Time             `json:"next_due_date"`
	State          models.RecurringState `json:"state,omitempty"`
	Subtotal       float64               `json:"subtotal"`
	Tax            float64               `json:"tax"`
	Notes          *string               `json:"notes,omitempty"`
	Rules          json.RawMessage       `json:"rules,omitempty"`
	Items          []RecurringItemInput  `json:"items,omitempty"`
}

func (in *CreateRecurringInput) validate() error {
	v := validation.Violations{}
	validation.Required("client_id", in.ClientID, v)
	validation.Required("template_number", in.TemplateNumber, v)
	if !recurring.ValidFrequency(in.Frequency) {
		v["frequency"] = "invalid_choice"
	}
	if in.NextDueDate.IsZero() {
		v["next_due_date"] = "required"
	}
	validation.OneOf("state", string(in.State), []string{
		string(models.RecurringStateDraft), string(models.RecurringStateActive),
	}, v)
	validation.NonNegativeFloat("subtotal", in.Subtotal, v)
	validation.NonNegativeFloat("tax", in.Tax, v)
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		validation.Required(prefix+"description", item.Description, v)
		validation.NonNegativeFloat(prefix+"quantity", item.Quantity, v)
		validation.NonNegativeFloat(prefix+"unit_price", item.UnitPrice, v)
	}
	return v.Err()
}

// Create stores a new template in state draft (the default) or active.
func (s *RecurringService) Create(ctx context.Context, accountID string, in CreateRecurringInput) (*models.RecurringInvoice, error) {
	if in.State == "" {
		in.State = models.RecurringStateDraft
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	rules, err := recurring.ParseRules(in.Rules)
	if err != nil {
		return nil, err
	}

	var client models.Client
	err = s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		First(&client, "id = ?", in.ClientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewValidationError("client_id", in.ClientID, "unknown client")
	}
	if err != nil {
		return nil, apperr.DataAccess("load client", err)
	}

	now := s.now()
	tpl := &models.RecurringInvoice{
		UserID:            accountID,
		ClientID:          client.ID,
		TemplateNumber:    in.TemplateNumber,
		Frequency:         in.Frequency,
		NextDueDate:       in.NextDueDate,
		State:             in.State,
		LastStateChangeAt: &now,
		IsActive:          in.State == models.RecurringStateActive,
		Subtotal:          in.Subtotal,
		Tax:               in.Tax,
		Notes:             in.Notes,
	}
	if len(rules) > 0 {
		raw, _ := json.Marshal(rules)
		tpl.Rules = datatypes.JSON(raw)
	}
	if len(in.Items) > 0 {
		var subtotal float64
		for i, item := range in.Items {
			line := models.RecurringInvoiceItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Amount:      item.Quantity * item.UnitPrice,
				Position:    i,
			}
			subtotal += line.Amount
			tpl.Items = append(tpl.Items, line)
		}
		tpl.Subtotal = subtotal
	}
	tpl.Total = tpl.Subtotal + tpl.Tax

	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return nil, apperr.DataAccess("create recurring invoice", err)
	}
	return tpl, nil
}

// Get loads one template with its items.
func (s *RecurringService) Get(ctx context.Context, accountID, id string) (*models.RecurringInvoice, error) {
	return s.load(s.db.WithContext(ctx), accountID, id)
}

func (s *RecurringService) load(db *gorm.DB, accountID, id string) (*models.RecurringInvoice, error) {
	var tpl models.RecurringInvoice
	err := db.Scopes(policy.AccountScope(accountID)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&tpl, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.DataAccess("load recurring invoice", err)
	}
	return &tpl, nil
}

// List returns the account's templates, newest first.
func (s *RecurringService) List(ctx context.Context, accountID string) ([]models.RecurringInvoice, error) {
	out := []models.RecurringInvoice{}
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.DataAccess("list recurring invoices", err)
	}
	return out, nil
}

// History returns a template's state changes, oldest first.
func (s *RecurringService) History(ctx context.Context, accountID, id string) ([]models.RecurringInvoiceHistory, error) {
	if _, err := s.Get(ctx, accountID, id); err != nil {
		return nil, err
	}
	var out []models.RecurringInvoiceHistory
	err := s.db.WithContext(ctx).
		Where("recurring_invoice_id = ?", id).
		Order("changed_at, id").
		Find(&out).Error
	if err != nil {
		return nil, apperr.DataAccess("list recurring history", err)
	}
	return out, nil
}

// Transition moves a template to a new state. The update is conditional on
// the state read, so a concurrent change yields ErrConflict. Every change
// stamps last_state_change_at, sets is_active to state == active and writes a
// history row.
func (s *RecurringService) Transition(ctx context.Context, accountID, id string, to models.RecurringState, changedBy string) (*models.RecurringInvoice, error) {
	var (
		out  *models.RecurringInvoice
		from models.RecurringState
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := s.load(tx, accountID, id)
		if err != nil {
			return err
		}
		from = tpl.State
		if err := recurring.Transition(from, to); err != nil {
			var ise *apperr.InvalidStateError
			if errors.As(err, &ise) {
				ise.ID = id
			}
			return err
		}

		now := s.now()
		upd := tx.Model(&models.RecurringInvoice{}).
			Scopes(policy.AccountScope(accountID)).
			Where("id = ? AND state = ?", id, from).
			Updates(map[string]any{
				"state":                to,
				"is_active":            to == models.RecurringStateActive,
				"last_state_change_at": now,
			})
		if upd.Error != nil {
			return apperr.DataAccess("update recurring state", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return apperr.ErrConflict
		}

		hist := &models.RecurringInvoiceHistory{
			RecurringInvoiceID: id,
			OldState:           &from,
			NewState:           &to,
			ChangedAt:          now,
		}
		if changedBy != "" {
			hist.ChangedBy = &changedBy
		}
		if err := tx.Create(hist).Error; err != nil {
			return apperr.DataAccess("record recurring history", err)
		}

		tpl.State = to
		tpl.IsActive = to == models.RecurringStateActive
		tpl.LastStateChangeAt = &now
		out = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(from), string(to))
	return out, nil
}

// Generate creates one invoice from an active template and advances its
// schedule.
//
// The invoice is created with status sent, issued today, due on the
// template's current next due date, numbered <template_number>-<unix millis>,
// with the template's amounts, notes and lines, and the template's rules
// applied. The template's next due date then advances by one period from its
// previous value and last_generated_date becomes today. Invoice creation and
// template update commit together; the update is conditional on the state and
// next due date read, so racing calls cannot both advance from the same date.
func (s *RecurringService) Generate(ctx context.Context, accountID, id string) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := s.load(tx, accountID, id)
		if err != nil {
			return err
		}
		if !recurring.CanGenerate(tpl.State) {
			return &apperr.InvalidStateError{
				Entity: "recurring invoice",
				ID:     id,
				State:  string(tpl.State),
				Op:     "generate invoice",
			}
		}
		rules, err := recurring.ParseRules([]byte(tpl.Rules))
		if err != nil {
			return err
		}
		next, err := recurring.Advance(tpl.NextDueDate, tpl.Frequency)
		if err != nil {
			return err
		}

		now := s.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		inv = buildInvoice(tpl, now, today)
		recurring.ApplyRules(inv, rules)

		if err := tx.Create(inv).Error; err != nil {
			return apperr.DataAccess("create generated invoice", err)
		}

		upd := tx.Model(&models.RecurringInvoice{}).
			Scopes(policy.AccountScope(accountID)).
			Where("id = ? AND state = ? AND next_due_date = ?", id, models.RecurringStateActive, tpl.NextDueDate).
			Updates(map[string]any{
				"next_due_date":       next,
				"last_generated_date": today,
			})
		if upd.Error != nil {
			return apperr.DataAccess("advance recurring schedule", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return apperr.ErrConflict
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordGenerate("error")
		return nil, err
	}
	s.metrics.RecordGenerate("ok")
	return inv, nil
}

func buildInvoice(tpl *models.RecurringInvoice, now, today time.Time) *models.Invoice {
	due := tpl.NextDueDate
	inv := &models.Invoice{
		UserID:    tpl.UserID,
		ClientID:  tpl.ClientID,
		Number:    fmt.Sprintf("%s-%d", tpl.TemplateNumber, now.UnixMilli()),
		Status:    models.InvoiceStatusSent,
		IssueDate: today,
		DueDate:   &due,
		Subtotal:  tpl.Subtotal,
		Tax:       tpl.Tax,
		Total:     tpl.Total,
	}
	if tpl.Notes != nil {
		notes := *tpl.Notes
		inv.Notes = &notes
	}
	for _, item := range tpl.Items {
		inv.Items = append(inv.Items, models.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
			Position:    item.Position,
		})
	}
	return inv
}

// Delete removes a template with its lines and history. Invoices already
// generated from it are kept. Deletion is allowed in every state.
func (s *RecurringService) Delete(ctx context.Context, accountID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.RecurringInvoice
		err := tx.Scopes(policy.AccountScope(accountID)).Select("id").First(&tpl, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return apperr.DataAccess("load recurring invoice", err)
		}

		if err := tx.Where("recurring_invoice_id = ?", id).Delete(&models.RecurringInvoiceItem{}).Error; err != nil {
			return apperr.DataAccess("delete recurring items", err)
		}
		if err := tx.Where("recurring_invoice_id = ?", id).Delete(&models.RecurringInvoiceHistory{}).Error; err != nil {
			return apperr.DataAccess("delete recurring history", err)
		}
		if err := tx.Scopes(policy.AccountScope(accountID)).Where("id = ?", id).Delete(&models.RecurringInvoice{}).Error; err != nil {
			return apperr.DataAccess("delete recurring invoice", err)
		}
		return nil
	})
}

// GenerateResult summarizes a GenerateDue pass.
type GenerateResult struct {
	Due       int      `json:"due"`
	Generated int      `json:"generated"`
	Failed    int      `json:"failed"`
	Invoices  []string `json:"invoice_ids"`
}

// GenerateDue generates one invoice for every active template, across all
// accounts, whose next due date is on or before asOf. A template that fails
// is logged and counted; the others still run.
func (s *RecurringService) GenerateDue(ctx context.Context, asOf time.Time) (*GenerateResult, error) {
	var due []models.RecurringInvoice
	err := s.db.WithContext(ctx).
		Select("id", "user_id").
		Where("state = ? AND next_due_date <= ?", models.RecurringStateActive, asOf).
		Order("next_due_date, id").
		Find(&due).Error
	if err != nil {
		return nil, apperr.DataAccess("list due recurring invoices", err)
	}

	res := &GenerateResult{Due: len(due), Invoices: []string{}}
	for _, tpl := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inv, err := s.Generate(ctx, tpl.UserID, tpl.ID)
		if err != nil {
			res.Failed++
			s.log.Error().Err(err).
				Str("account_id", tpl.UserID).
				Str("recurring_invoice_id", tpl.ID).
				Msg("failed to generate recurring invoice")
			continue
		}
		res.Generated++
		res.Invoices = append(res.Invoices, inv.ID)
	}
	s.log.Info().Int("due", res.Due).Int("generated", res.Generated).Int("failed", res.Failed).
		Msg("recurring generation pass complete")
	return res, nil
}
