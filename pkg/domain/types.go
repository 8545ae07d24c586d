package domain

import "time"

// MediumType tags the input modality a summary was produced from.
type MediumType string

const (
	MediumText MediumType = "text"
	MediumFile MediumType = "file"
)

// Length categories derived from the requested summary ratio.
const (
	LengthVeryShort = 0
	LengthShort     = 1
	LengthMedium    = 2
	LengthLong      = 3
)

// Content holds a text body together with its word and sentence counts.
type Content struct {
	Text          string `json:"text"`
	WordCount     int    `json:"wordCount"`
	SentenceCount int    `json:"sentenceCount"`
}

// FileMeta describes a durably stored input file attached to a record.
type FileMeta struct {
	StorageKey   string `json:"filePath"`
	OriginalName string `json:"name"`
	MediaType    string `json:"type"`
	SizeBytes    int64  `json:"size"`
}

// InputMedium is a two-variant tagged union. For MediumText, File is nil.
// For MediumFile, File stays nil between record creation and the second
// attach phase, then carries the stored file metadata.
type InputMedium struct {
	Type MediumType `json:"type"`
	File *FileMeta  `json:"file,omitempty"`
}

// SummaryRecord is the persisted outcome of one summarization request.
type SummaryRecord struct {
	ID                string      `json:"id"`
	OwnerID           string      `json:"ownerId"`
	OriginalContent   Content     `json:"originalContent"`
	SummarizedContent Content     `json:"summarizedContent"`
	Keywords          []string    `json:"keywords,omitempty"`
	Feedback          *int        `json:"feedback,omitempty"`
	SummaryLength     *int        `json:"summaryLengthCategory,omitempty"`
	InputMedium       InputMedium `json:"inputMedium"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// SummarizeResult is the upstream engine's response, passed through verbatim.
type SummarizeResult struct {
	SummaryText           string   `json:"summaryText"`
	OriginalText          string   `json:"originalText"`
	OriginalWordCount     int      `json:"originalWordCount"`
	SummaryWordCount      int      `json:"summaryWordCount"`
	OriginalSentenceCount int      `json:"originalSentenceCount"`
	SummarySentenceCount  int      `json:"summarySentenceCount"`
	Keywords              []string `json:"keywords"`
}

// FeedbackBucket counts records per rating. Rating is nil for the bucket of
// records that never received feedback.
type FeedbackBucket struct {
	Rating *int  `json:"rating"`
	Count  int64 `json:"count"`
}

// MediumBucket counts records per input medium type.
type MediumBucket struct {
	Type  MediumType `json:"type"`
	Count int64      `json:"count"`
}

// LengthBucket counts records per summary length category.
type LengthBucket struct {
	Category int    `json:"category"`
	Label    string `json:"label"`
	Count    int64  `json:"count"`
}

// ContentAverages holds fleet-wide mean counts. Averages are 0 when the
// record set is empty; the compression ratio averages only records whose
// original word count is non-zero.
type ContentAverages struct {
	OriginalWordCount     float64
	OriginalSentenceCount float64
	SummaryWordCount      float64
	SummarySentenceCount  float64
	CompressionRatio      float64
}

// OriginalContentStats is the analytics view of submitted content.
type OriginalContentStats struct {
	AvgWordCount       float64        `json:"avgWordCount"`
	AvgSentenceCount   float64        `json:"avgSentenceCount"`
	LengthDistribution []LengthBucket `json:"lengthDistribution"`
}

// SummarizedContentStats is the analytics view of produced summaries.
type SummarizedContentStats struct {
	AvgWordCount        float64 `json:"avgWordCount"`
	AvgSentenceCount    float64 `json:"avgSentenceCount"`
	AvgCompressionRatio float64 `json:"avgCompressionRatio"`
}

// AnalyticsReport is the point-in-time aggregate over all stored records.
type AnalyticsReport struct {
	TotalSummaries          int64                  `json:"totalSummaries"`
	OriginalContentStats    OriginalContentStats   `json:"originalContentStats"`
	SummarizedContentStats  SummarizedContentStats `json:"summarizedContentStats"`
	FeedbackAnalysis        []FeedbackBucket       `json:"feedbackAnalysis"`
	InputMediumDistribution []MediumBucket         `json:"inputMediumDistribution"`
}
