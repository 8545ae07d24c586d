package app

import (
	"golang.org/x/sync/errgroup"

	"omnidigest/pkg/domain"
)

var lengthLabels = map[int]string{
	domain.LengthVeryShort: "Very Short",
	domain.LengthShort:     "Short",
	domain.LengthMedium:    "Medium",
	domain.LengthLong:      "Long",
}

func lengthLabel(category int) string {
	if label, ok := lengthLabels[category]; ok {
		return label
	}
	return "Unknown"
}

// Analytics computes a point-in-time aggregate report over all records.
// The store queries run concurrently and do not coordinate with writers;
// writes racing the report may or may not be reflected.
func (a *App) Analytics() (domain.AnalyticsReport, error) {
	var (
		total    int64
		averages domain.ContentAverages
		feedback []domain.FeedbackBucket
		mediums  []domain.MediumBucket
		lengths  []domain.LengthBucket
	)

	var g errgroup.Group
	g.Go(func() (err error) {
		total, err = a.store.CountSummaries()
		return err
	})
	g.Go(func() (err error) {
		averages, err = a.store.ContentAverages()
		return err
	})
	g.Go(func() (err error) {
		feedback, err = a.store.FeedbackHistogram()
		return err
	})
	g.Go(func() (err error) {
		mediums, err = a.store.InputMediumHistogram()
		return err
	})
	g.Go(func() (err error) {
		lengths, err = a.store.LengthHistogram()
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AnalyticsReport{}, err
	}

	for i := range lengths {
		lengths[i].Label = lengthLabel(lengths[i].Category)
	}
	if feedback == nil {
		feedback = []domain.FeedbackBucket{}
	}
	if mediums == nil {
		mediums = []domain.MediumBucket{}
	}
	if lengths == nil {
		lengths = []domain.LengthBucket{}
	}

	return domain.AnalyticsReport{
		TotalSummaries: total,
		OriginalContentStats: domain.OriginalContentStats{
			AvgWordCount:       averages.OriginalWordCount,
			AvgSentenceCount:   averages.OriginalSentenceCount,
			LengthDistribution: lengths,
		},
		SummarizedContentStats: domain.SummarizedContentStats{
			AvgWordCount:        averages.SummaryWordCount,
			AvgSentenceCount:    averages.SummarySentenceCount,
			AvgCompressionRatio: averages.CompressionRatio,
		},
		FeedbackAnalysis:        feedback,
		InputMediumDistribution: mediums,
	}, nil
}
