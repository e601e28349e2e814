package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/health"
	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/policy"
)

// HealthService loads invoice histories and scores them.
type HealthService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewHealthService(db *gorm.DB, m *metrics.Metrics) *HealthService {
	return &HealthService{
		db:      db,
		metrics: m,
		log:     logger.WithComponent("health"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ClientHealth is a client's score as returned to callers.
type ClientHealth struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	health.Score
}

// ClientScore scores one client of the account from its invoice history.
func (s *HealthService) ClientScore(ctx context.Context, accountID, clientID string) (*ClientHealth, error) {
	client, err := s.loadClient(ctx, accountID, clientID)
	if err != nil {
		return nil, err
	}
	return s.scoreClient(ctx, accountID, client)
}

// AccountScore scores the account's whole invoice book.
func (s *HealthService) AccountScore(ctx context.Context, accountID string) (health.Score, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		Select("id", "status", "total", "due_date").
		Find(&invoices).Error
	if err != nil {
		return health.Score{}, apperr.DataAccess("list invoices", err)
	}
	return health.CalculateInputs(health.Tally(invoices, s.now())), nil
}

// RefreshClient recomputes a client's score and caches it on the client row.
func (s *HealthService) RefreshClient(ctx context.Context, accountID, clientID string) (*ClientHealth, error) {
	client, err := s.loadClient(ctx, accountID, clientID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, accountID, client)
}

func (s *HealthService) refresh(ctx context.Context, accountID string, client *models.Client) (*ClientHealth, error) {
	ch, err := s.scoreClient(ctx, accountID, client)
	if err != nil {
		s.metrics.RecordHealthRefresh("error")
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&models.Client{}).
		Scopes(policy.AccountScope(accountID)).
		Where("id = ?", client.ID).
		Update("health_score", ch.Value).Error
	if err != nil {
		s.metrics.RecordHealthRefresh("error")
		return nil, apperr.DataAccess("store health score", err)
	}
	s.metrics.RecordHealthRefresh("ok")
	return ch, nil
}

// RefreshResult summarizes a bulk refresh.
type RefreshResult struct {
	Clients   int            `json:"clients"`
	Refreshed int            `json:"refreshed"`
	Failed    int            `json:"failed"`
	Scores    []ClientHealth `json:"scores"`
}

// RefreshAll refreshes every client of the account. A client that fails is
// logged and skipped.
func (s *HealthService) RefreshAll(ctx context.Context, accountID string) (*RefreshResult, error) {
	var clients []models.Client
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		Order("name, id").
		Find(&clients).Error
	if err != nil {
		return nil, apperr.DataAccess("list clients", err)
	}

	log := logger.WithAccount(s.log, accountID)
	res := &RefreshResult{Clients: len(clients), Scores: []ClientHealth{}}
	for i := range clients {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ch, err := s.refresh(ctx, accountID, &clients[i])
		if err != nil {
			res.Failed++
			log.Error().Err(err).Str("client_id", clients[i].ID).Msg("failed to refresh health score")
			continue
		}
		res.Refreshed++
		res.Scores = append(res.Scores, *ch)
	}
	log.Info().Int("refreshed", res.Refreshed).Int("failed", res.Failed).Msg("health refresh complete")
	return res, nil
}

// RefreshAccounts runs RefreshAll for every account that has clients.
func (s *HealthService) RefreshAccounts(ctx context.Context) (int, error) {
	var accounts []string
	err := s.db.WithContext(ctx).Model(&models.Client{}).
		Distinct().Order("user_id").
		Pluck("user_id", &accounts).Error
	if err != nil {
		return 0, apperr.DataAccess("list client accounts", err)
	}
	refreshed := 0
	for _, accountID := range accounts {
		res, err := s.RefreshAll(ctx, accountID)
		if err != nil {
			if ctx.Err() != nil {
				return refreshed, err
			}
			s.log.Error().Err(err).Str("account_id", accountID).Msg("failed to refresh account")
			continue
		}
		refreshed += res.Refreshed
	}
	return refreshed, nil
}

func (s *HealthService) loadClient(ctx context.Context, accountID, clientID string) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		First(&client, "id = ?", clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.DataAccess("load client", err)
	}
	if !policy.Owns(accountID, &client) {
		return nil, apperr.ErrNotFound
	}
	return &client, nil
}

func (s *HealthService) scoreClient(ctx context.Context, accountID string, client *models.Client) (*ClientHealth, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		Select("id", "status", "total", "due_date").
		Where("client_id = ?", client.ID).
		Find(&invoices).Error
	if err != nil {
		return nil, apperr.DataAccess("list client invoices", err)
	}
	return &ClientHealth{
		ClientID: client.ID,
		Name:     client.Name,
		Score:    health.CalculateInputs(health.Tally(invoices, s.now())),
	}, nil
}
