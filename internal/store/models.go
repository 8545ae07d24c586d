package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"omnidigest/pkg/domain"
)

// SummaryModel is the GORM row for one summary record. Content blocks are
// flattened into columns so the aggregate queries can run in SQL.
type SummaryModel struct {
	ID                    string         `gorm:"primaryKey"`
	OwnerID               string         `gorm:"not null;index"`
	OriginalText          string         `gorm:"not null"`
	OriginalWordCount     int            `gorm:"not null"`
	OriginalSentenceCount int            `gorm:"not null"`
	SummaryText           string         `gorm:"not null"`
	SummaryWordCount      int            `gorm:"not null"`
	SummarySentenceCount  int            `gorm:"not null"`
	Keywords              datatypes.JSON `gorm:"type:jsonb"`
	Feedback              *int
	SummaryLength         *int
	InputMediumType       string `gorm:"not null;default:text"`
	FileStorageKey        *string
	FileOriginalName      *string
	FileMediaType         *string
	FileSizeBytes         *int64
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName keeps the table name aligned with the record collection.
func (SummaryModel) TableName() string { return "summary_records" }

func summaryToModel(rec domain.SummaryRecord) SummaryModel {
	keywords, _ := json.Marshal(rec.Keywords)
	if rec.Keywords == nil {
		keywords = []byte("[]")
	}
	m := SummaryModel{
		ID:                    rec.ID,
		OwnerID:               rec.OwnerID,
		OriginalText:          rec.OriginalContent.Text,
		OriginalWordCount:     rec.OriginalContent.WordCount,
		OriginalSentenceCount: rec.OriginalContent.SentenceCount,
		SummaryText:           rec.SummarizedContent.Text,
		SummaryWordCount:      rec.SummarizedContent.WordCount,
		SummarySentenceCount:  rec.SummarizedContent.SentenceCount,
		Keywords:              datatypes.JSON(keywords),
		Feedback:              rec.Feedback,
		SummaryLength:         rec.SummaryLength,
		InputMediumType:       string(rec.InputMedium.Type),
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
	}
	if file := rec.InputMedium.File; file != nil {
		m.FileStorageKey = &file.StorageKey
		m.FileOriginalName = &file.OriginalName
		m.FileMediaType = &file.MediaType
		m.FileSizeBytes = &file.SizeBytes
	}
	return m
}

func summaryFromModel(m SummaryModel) domain.SummaryRecord {
	var keywords []string
	_ = json.Unmarshal([]byte(m.Keywords), &keywords)
	rec := domain.SummaryRecord{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		OriginalContent: domain.Content{
			Text:          m.OriginalText,
			WordCount:     m.OriginalWordCount,
			SentenceCount: m.OriginalSentenceCount,
		},
		SummarizedContent: domain.Content{
			Text:          m.SummaryText,
			WordCount:     m.SummaryWordCount,
			SentenceCount: m.SummarySentenceCount,
		},
		Keywords:      keywords,
		Feedback:      m.Feedback,
		SummaryLength: m.SummaryLength,
		InputMedium:   domain.InputMedium{Type: domain.MediumType(m.InputMediumType)},
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.FileStorageKey != nil {
		rec.InputMedium.File = &domain.FileMeta{
			StorageKey:   *m.FileStorageKey,
			OriginalName: deref(m.FileOriginalName),
			MediaType:    deref(m.FileMediaType),
			SizeBytes:    derefInt64(m.FileSizeBytes),
		}
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
