package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"omnidigest/pkg/domain"
)

// MemoryStore keeps records in-process. It implements Store and backs tests
// and local development without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.SummaryRecord
	order   []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.SummaryRecord)}
}

// CreateSummary stores a new record and tracks insertion order.
func (m *MemoryStore) CreateSummary(rec domain.SummaryRecord) (domain.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uuid.NewString()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec, nil
}

// GetSummary retrieves a record by ID.
func (m *MemoryStore) GetSummary(id string) (domain.SummaryRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

// ListByOwner returns records for one owner in insertion order.
func (m *MemoryStore) ListByOwner(ownerID string) ([]domain.SummaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SummaryRecord, 0)
	for _, id := range m.order {
		if rec, ok := m.records[id]; ok && rec.OwnerID == ownerID {
			res = append(res, rec)
		}
	}
	return res, nil
}

// AttachFile overwrites the input medium with stored file metadata.
func (m *MemoryStore) AttachFile(id string, meta domain.FileMeta) (domain.SummaryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.SummaryRecord{}, false, nil
	}
	fileMeta := meta
	rec.InputMedium = domain.InputMedium{Type: domain.MediumFile, File: &fileMeta}
	rec.UpdatedAt = time.Now().UTC()
	m.records[id] = rec
	return rec, true, nil
}

// UpdateFeedback sets only the feedback field, last write wins.
func (m *MemoryStore) UpdateFeedback(id string, rating int) (domain.SummaryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.SummaryRecord{}, false, nil
	}
	r := rating
	rec.Feedback = &r
	rec.UpdatedAt = time.Now().UTC()
	m.records[id] = rec
	return rec, true, nil
}

// CountSummaries returns the total number of records.
func (m *MemoryStore) CountSummaries() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// ContentAverages computes mean counts over all records.
func (m *MemoryStore) ContentAverages() (domain.ContentAverages, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := len(m.records)
	if total == 0 {
		return domain.ContentAverages{}, nil
	}
	var avg domain.ContentAverages
	var ratioSum float64
	var ratioCount int
	for _, rec := range m.records {
		avg.OriginalWordCount += float64(rec.OriginalContent.WordCount)
		avg.OriginalSentenceCount += float64(rec.OriginalContent.SentenceCount)
		avg.SummaryWordCount += float64(rec.SummarizedContent.WordCount)
		avg.SummarySentenceCount += float64(rec.SummarizedContent.SentenceCount)
		if rec.OriginalContent.WordCount != 0 {
			ratioSum += float64(rec.SummarizedContent.WordCount) / float64(rec.OriginalContent.WordCount)
			ratioCount++
		}
	}
	n := float64(total)
	avg.OriginalWordCount /= n
	avg.OriginalSentenceCount /= n
	avg.SummaryWordCount /= n
	avg.SummarySentenceCount /= n
	if ratioCount > 0 {
		avg.CompressionRatio = ratioSum / float64(ratioCount)
	}
	return avg, nil
}

// FeedbackHistogram groups records by rating with the null bucket first.
func (m *MemoryStore) FeedbackHistogram() ([]domain.FeedbackBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var nullCount int64
	rated := make(map[int]int64)
	for _, rec := range m.records {
		if rec.Feedback == nil {
			nullCount++
			continue
		}
		rated[*rec.Feedback]++
	}
	ratings := make([]int, 0, len(rated))
	for r := range rated {
		ratings = append(ratings, r)
	}
	sort.Ints(ratings)
	out := make([]domain.FeedbackBucket, 0, len(ratings)+1)
	if nullCount > 0 {
		out = append(out, domain.FeedbackBucket{Rating: nil, Count: nullCount})
	}
	for _, r := range ratings {
		rating := r
		out = append(out, domain.FeedbackBucket{Rating: &rating, Count: rated[r]})
	}
	return out, nil
}

// InputMediumHistogram groups records by input medium type.
func (m *MemoryStore) InputMediumHistogram() ([]domain.MediumBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.MediumType]int64)
	for _, rec := range m.records {
		counts[rec.InputMedium.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	out := make([]domain.MediumBucket, 0, len(types))
	for _, t := range types {
		out = append(out, domain.MediumBucket{Type: domain.MediumType(t), Count: counts[domain.MediumType(t)]})
	}
	return out, nil
}

// LengthHistogram groups records by length category, restricted to the four
// known categories.
func (m *MemoryStore) LengthHistogram() ([]domain.LengthBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[int]int64)
	for _, rec := range m.records {
		if rec.SummaryLength == nil {
			continue
		}
		cat := *rec.SummaryLength
		if cat < domain.LengthVeryShort || cat > domain.LengthLong {
			continue
		}
		counts[cat]++
	}
	out := make([]domain.LengthBucket, 0, len(counts))
	for cat := domain.LengthVeryShort; cat <= domain.LengthLong; cat++ {
		if count, ok := counts[cat]; ok {
			out = append(out, domain.LengthBucket{Category: cat, Count: count})
		}
	}
	return out, nil
}
