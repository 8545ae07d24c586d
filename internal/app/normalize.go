package app

import "strings"

// LengthBucket maps a continuous summary ratio onto a labelled discrete
// category. Buckets are ordered by ascending ratio; a request ratio falls
// into the first bucket whose threshold is not below it.
type LengthBucket struct {
	Label string  `yaml:"label"`
	Ratio float64 `yaml:"ratio"`
}

// DefaultLengthBuckets returns the reference four-bucket table.
func DefaultLengthBuckets() []LengthBucket {
	return []LengthBucket{
		{Label: "Very Short", Ratio: 0.05},
		{Label: "Short", Ratio: 0.15},
		{Label: "Medium", Ratio: 0.25},
		{Label: "Long", Ratio: 0.40},
	}
}

// normalizedRequest is the canonical shape both ingestion modalities reduce
// to before anything is forwarded.
type normalizedRequest struct {
	text           string
	filename       string
	ratio          float64
	lengthCategory int
}

// lengthCategoryFor maps a ratio in (0, 1] to a bucket index. Ratios above
// the highest threshold land in the last bucket.
func (a *App) lengthCategoryFor(ratio float64) (int, error) {
	if ratio <= 0 || ratio > 1 {
		return 0, ErrInvalidRatio
	}
	for i, b := range a.buckets {
		if ratio <= b.Ratio {
			return i, nil
		}
	}
	return len(a.buckets) - 1, nil
}

// normalizeText validates a text submission and resolves its category.
func (a *App) normalizeText(text string, ratio float64) (normalizedRequest, error) {
	if strings.TrimSpace(text) == "" {
		return normalizedRequest{}, ErrMissingInput
	}
	category, err := a.lengthCategoryFor(ratio)
	if err != nil {
		return normalizedRequest{}, err
	}
	return normalizedRequest{text: text, ratio: ratio, lengthCategory: category}, nil
}

// normalizeFile validates a file submission and resolves its category.
func (a *App) normalizeFile(filename string, ratio float64) (normalizedRequest, error) {
	if strings.TrimSpace(filename) == "" {
		return normalizedRequest{}, ErrMissingInput
	}
	category, err := a.lengthCategoryFor(ratio)
	if err != nil {
		return normalizedRequest{}, err
	}
	return normalizedRequest{filename: filename, ratio: ratio, lengthCategory: category}, nil
}
