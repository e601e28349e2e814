package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/extraction"
	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/policy"
)

// ExtractionService stores structured fields read from uploaded documents.
type ExtractionService struct {
	db        *gorm.DB
	extractor extraction.Extractor
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewExtractionService creates the service. With a nil extractor the document
// text is stored as-is.
func NewExtractionService(db *gorm.DB, extractor extraction.Extractor, m *metrics.Metrics) *ExtractionService {
	return &ExtractionService{
		db:        db,
		extractor: extractor,
		metrics:   m,
		log:       logger.WithComponent("extraction"),
	}
}

// Process extracts fields from content, the text of the account's uploaded
// file, records an ai_extractions row and marks the upload processed. A model
// failure is logged and the raw text is stored instead.
func (s *ExtractionService) Process(ctx context.Context, accountID, fileID, content string) (*models.AIExtraction, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.NewValidationError("content", content, "document text is required")
	}

	var file models.UploadedFile
	err := s.db.WithContext(ctx).Scopes(policy.AccountScope(accountID)).
		First(&file, "id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.DataAccess("load uploaded file", err)
	}

	text := content
	result := "raw"
	if s.extractor != nil {
		out, err := s.extractor.Extract(ctx, content)
		if err != nil {
			result = "fallback"
			s.log.Warn().Err(err).Str("file_id", fileID).Msg("extraction failed, storing raw text")
		} else {
			text = out
			result = "ok"
		}
	}
	fields := extraction.ParseFields(text)

	rec := &models.AIExtraction{
		FileID:          file.ID,
		ExtractedText:   &content,
		ExtractedFields: datatypes.JSON(fields),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return tx.Model(&models.UploadedFile{}).
			Scopes(policy.AccountScope(accountID)).
			Where("id = ?", file.ID).
			Updates(map[string]any{
				"status":         models.UploadStatusProcessed,
				"extracted_data": datatypes.JSON(fields),
			}).Error
	})
	if err != nil {
		s.metrics.RecordExtraction("error")
		return nil, apperr.DataAccess("store extraction", err)
	}
	s.metrics.RecordExtraction(result)
	return rec, nil
}
