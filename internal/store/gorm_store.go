package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"omnidigest/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&SummaryModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateSummary persists a new record and returns it with ID and timestamps set.
func (s *GormStore) CreateSummary(rec domain.SummaryRecord) (domain.SummaryRecord, error) {
	rec.ID = uuid.NewString()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	model := summaryToModel(rec)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.SummaryRecord{}, err
	}
	return summaryFromModel(model), nil
}

// GetSummary retrieves a record by ID.
func (s *GormStore) GetSummary(id string) (domain.SummaryRecord, bool, error) {
	var model SummaryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SummaryRecord{}, false, nil
		}
		return domain.SummaryRecord{}, false, err
	}
	return summaryFromModel(model), true, nil
}

// ListByOwner returns all records submitted by one owner.
func (s *GormStore) ListByOwner(ownerID string) ([]domain.SummaryRecord, error) {
	var models []SummaryModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SummaryRecord, 0, len(models))
	for _, m := range models {
		res = append(res, summaryFromModel(m))
	}
	return res, nil
}

// AttachFile overwrites the input medium with stored file metadata.
// The second return is false when the record does not exist.
func (s *GormStore) AttachFile(id string, meta domain.FileMeta) (domain.SummaryRecord, bool, error) {
	var model SummaryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SummaryRecord{}, false, nil
		}
		return domain.SummaryRecord{}, false, err
	}
	updates := map[string]any{
		"input_medium_type":  string(domain.MediumFile),
		"file_storage_key":   meta.StorageKey,
		"file_original_name": meta.OriginalName,
		"file_media_type":    meta.MediaType,
		"file_size_bytes":    meta.SizeBytes,
		"updated_at":         time.Now().UTC(),
	}
	if err := s.db.Model(&SummaryModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return domain.SummaryRecord{}, false, err
	}
	return s.GetSummary(id)
}

// UpdateFeedback sets only the feedback column, last write wins.
func (s *GormStore) UpdateFeedback(id string, rating int) (domain.SummaryRecord, bool, error) {
	res := s.db.Model(&SummaryModel{}).Where("id = ?", id).Updates(map[string]any{
		"feedback":   rating,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return domain.SummaryRecord{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.SummaryRecord{}, false, nil
	}
	return s.GetSummary(id)
}

// CountSummaries returns the total number of records.
func (s *GormStore) CountSummaries() (int64, error) {
	var count int64
	if err := s.db.Model(&SummaryModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ContentAverages computes mean counts across all records in a single pass.
// Rows with a zero original word count contribute NULL to the compression
// ratio, which AVG then ignores.
func (s *GormStore) ContentAverages() (domain.ContentAverages, error) {
	var row struct {
		AvgOriginalWordCount     float64
		AvgOriginalSentenceCount float64
		AvgSummaryWordCount      float64
		AvgSummarySentenceCount  float64
		AvgCompressionRatio      float64
	}
	err := s.db.Raw(`
		SELECT
			COALESCE(AVG(original_word_count), 0)     AS avg_original_word_count,
			COALESCE(AVG(original_sentence_count), 0) AS avg_original_sentence_count,
			COALESCE(AVG(summary_word_count), 0)      AS avg_summary_word_count,
			COALESCE(AVG(summary_sentence_count), 0)  AS avg_summary_sentence_count,
			COALESCE(AVG(CASE WHEN original_word_count = 0 THEN NULL
				ELSE summary_word_count::float8 / original_word_count END), 0) AS avg_compression_ratio
		FROM summary_records`).Scan(&row).Error
	if err != nil {
		return domain.ContentAverages{}, err
	}
	return domain.ContentAverages{
		OriginalWordCount:     row.AvgOriginalWordCount,
		OriginalSentenceCount: row.AvgOriginalSentenceCount,
		SummaryWordCount:      row.AvgSummaryWordCount,
		SummarySentenceCount:  row.AvgSummarySentenceCount,
		CompressionRatio:      row.AvgCompressionRatio,
	}, nil
}

// FeedbackHistogram groups records by rating, keeping an explicit bucket for
// records with no feedback. The null bucket sorts first.
func (s *GormStore) FeedbackHistogram() ([]domain.FeedbackBucket, error) {
	var rows []domain.FeedbackBucket
	err := s.db.Raw(`
		SELECT feedback AS rating, COUNT(*) AS count
		FROM summary_records
		GROUP BY feedback
		ORDER BY feedback ASC NULLS FIRST`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InputMediumHistogram groups records by input medium type.
func (s *GormStore) InputMediumHistogram() ([]domain.MediumBucket, error) {
	var rows []domain.MediumBucket
	err := s.db.Raw(`
		SELECT input_medium_type AS type, COUNT(*) AS count
		FROM summary_records
		GROUP BY input_medium_type
		ORDER BY input_medium_type ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LengthHistogram groups records by length category, restricted to the four
// known categories. Records outside the set are excluded.
func (s *GormStore) LengthHistogram() ([]domain.LengthBucket, error) {
	var rows []domain.LengthBucket
	err := s.db.Raw(`
		SELECT summary_length AS category, COUNT(*) AS count
		FROM summary_records
		WHERE summary_length IN (0, 1, 2, 3)
		GROUP BY summary_length
		ORDER BY summary_length ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
