package store

import "omnidigest/pkg/domain"

// Store defines persistence operations for summary records.
//
// Create assigns the record ID and timestamps. Lookup methods report
// existence through the bool return so callers can tell "absent" apart
// from a storage failure.
type Store interface {
	CreateSummary(rec domain.SummaryRecord) (domain.SummaryRecord, error)
	GetSummary(id string) (domain.SummaryRecord, bool, error)
	ListByOwner(ownerID string) ([]domain.SummaryRecord, error)
	AttachFile(id string, meta domain.FileMeta) (domain.SummaryRecord, bool, error)
	UpdateFeedback(id string, rating int) (domain.SummaryRecord, bool, error)

	// Aggregate reads. Each is a point-in-time view and does not
	// coordinate with concurrent writers.
	CountSummaries() (int64, error)
	ContentAverages() (domain.ContentAverages, error)
	FeedbackHistogram() ([]domain.FeedbackBucket, error)
	InputMediumHistogram() ([]domain.MediumBucket, error)
	LengthHistogram() ([]domain.LengthBucket, error)
}
