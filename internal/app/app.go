package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"omnidigest/internal/engine"
	"omnidigest/internal/staging"
	"omnidigest/internal/storage"
	"omnidigest/internal/store"
	"omnidigest/pkg/domain"
)

// SummaryEngine abstracts the external summarization engine.
type SummaryEngine interface {
	SummarizeText(text string, ratio float64, lengthCategory int) (domain.SummarizeResult, error)
	SummarizeFile(filename string, r io.Reader, ratio float64, lengthCategory int) (domain.SummarizeResult, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store // optional override, defaults to Postgres

	EngineURL     string
	EngineTimeout time.Duration
	Engine        SummaryEngine // optional override

	StagingDir        string
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Durable attachment storage: MinIO when an endpoint is set, local
	// disk otherwise.
	Attachments    storage.ObjectStore // optional override
	AttachmentsDir string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LengthBuckets []LengthBucket
}

// App wires the ingestion pipeline, the record store, and analytics.
type App struct {
	store       store.Store
	engine      SummaryEngine
	staging     *staging.Manager
	attachments storage.ObjectStore
	buckets     []LengthBucket
}

// New constructs the application. The staging directory and, for the local
// backend, the attachments directory are created if absent.
func New(cfg Config) (*App, error) {
	stagingDir := cfg.StagingDir
	if stagingDir == "" {
		stagingDir = "temp_uploads"
	}
	stager, err := staging.New(stagingDir, cfg.MaxUploadBytes, cfg.AllowedExtensions)
	if err != nil {
		return nil, err
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	eng := cfg.Engine
	if eng == nil {
		if cfg.EngineURL == "" {
			return nil, fmt.Errorf("engine URL required")
		}
		eng = engine.NewClient(cfg.EngineURL, cfg.EngineTimeout)
	}

	attachments := cfg.Attachments
	if attachments == nil {
		if cfg.MinioEndpoint != "" {
			attachments, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
			if err != nil {
				return nil, fmt.Errorf("init minio store: %w", err)
			}
		} else {
			dir := cfg.AttachmentsDir
			if dir == "" {
				dir = "file_uploads"
			}
			attachments, err = storage.NewFileStore(dir)
			if err != nil {
				return nil, fmt.Errorf("init file store: %w", err)
			}
		}
	}

	buckets := cfg.LengthBuckets
	if len(buckets) == 0 {
		buckets = DefaultLengthBuckets()
	}

	return &App{
		store:       dataStore,
		engine:      eng,
		staging:     stager,
		attachments: attachments,
		buckets:     buckets,
	}, nil
}

// StagingDir exposes the staging directory path (used by tests and startup logs).
func (a *App) StagingDir() string { return a.staging.Dir() }

// MaxUploadBytes exposes the upload ceiling enforced at ingestion.
func (a *App) MaxUploadBytes() int64 { return a.staging.MaxBytes() }

// SummarizeText forwards a text submission and returns the engine result
// together with the resolved length category.
func (a *App) SummarizeText(text string, ratio float64) (domain.SummarizeResult, int, error) {
	req, err := a.normalizeText(text, ratio)
	if err != nil {
		return domain.SummarizeResult{}, 0, err
	}
	result, err := a.engine.SummarizeText(req.text, req.ratio, req.lengthCategory)
	if err != nil {
		return domain.SummarizeResult{}, 0, err
	}
	return result, req.lengthCategory, nil
}

// SummarizeFile stages the upload, forwards it, and removes the staged
// artifact on every exit path: success, upstream error, or local failure.
func (a *App) SummarizeFile(filename string, r io.Reader, declaredSize int64, ratio float64) (domain.SummarizeResult, int, error) {
	if r == nil {
		return domain.SummarizeResult{}, 0, ErrMissingInput
	}
	req, err := a.normalizeFile(filename, ratio)
	if err != nil {
		return domain.SummarizeResult{}, 0, err
	}

	artifact, err := a.staging.Stage(req.filename, r, declaredSize)
	if err != nil {
		return domain.SummarizeResult{}, 0, err
	}
	defer func() {
		if rmErr := artifact.Remove(); rmErr != nil {
			slog.Warn("remove staged file", "path", artifact.Path, "err", rmErr)
		}
	}()

	f, err := artifact.Open()
	if err != nil {
		return domain.SummarizeResult{}, 0, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	result, err := a.engine.SummarizeFile(artifact.OriginalName, f, req.ratio, req.lengthCategory)
	if err != nil {
		return domain.SummarizeResult{}, 0, err
	}
	return result, req.lengthCategory, nil
}

// CreateRecord validates and persists a completed summarization outcome.
func (a *App) CreateRecord(rec domain.SummaryRecord) (domain.SummaryRecord, error) {
	if strings.TrimSpace(rec.OwnerID) == "" {
		return domain.SummaryRecord{}, ErrMissingRequiredField
	}
	if !contentValid(rec.OriginalContent) || !contentValid(rec.SummarizedContent) {
		return domain.SummaryRecord{}, ErrMissingRequiredField
	}
	if rec.Feedback != nil && (*rec.Feedback < 1 || *rec.Feedback > 5) {
		return domain.SummaryRecord{}, ErrInvalidRating
	}
	if rec.InputMedium.Type == "" {
		rec.InputMedium.Type = domain.MediumText
	}
	switch rec.InputMedium.Type {
	case domain.MediumText:
		if rec.InputMedium.File != nil {
			return domain.SummaryRecord{}, ErrInvalidInputMedium
		}
	case domain.MediumFile:
		// File metadata may be absent here: for file-origin records it is
		// attached in a second phase once the record id exists.
	default:
		return domain.SummaryRecord{}, ErrInvalidInputMedium
	}
	return a.store.CreateSummary(rec)
}

// AttachFile durably stores an uploaded file and keys it to an existing
// record, completing the two-phase file attachment.
func (a *App) AttachFile(id, filename string, r io.Reader, size int64, mediaType string) (domain.SummaryRecord, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || r == nil {
		return domain.SummaryRecord{}, ErrMissingInput
	}
	if err := a.staging.CheckFilename(name); err != nil {
		return domain.SummaryRecord{}, err
	}
	if size > a.staging.MaxBytes() {
		return domain.SummaryRecord{}, staging.ErrTooLarge
	}

	// The record must exist before the file can be keyed to its id.
	if _, ok, err := a.store.GetSummary(id); err != nil {
		return domain.SummaryRecord{}, err
	} else if !ok {
		return domain.SummaryRecord{}, ErrNotFound
	}

	if mediaType == "" {
		mediaType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	key := fmt.Sprintf("%s-%s", id, name)
	if err := a.attachments.Put(context.Background(), key, r, size, mediaType); err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("store attachment: %w", err)
	}

	meta := domain.FileMeta{
		StorageKey:   key,
		OriginalName: name,
		MediaType:    mediaType,
		SizeBytes:    size,
	}
	updated, ok, err := a.store.AttachFile(id, meta)
	if err != nil || !ok {
		_ = a.attachments.Delete(context.Background(), key)
		if err != nil {
			return domain.SummaryRecord{}, fmt.Errorf("update record: %w", err)
		}
		return domain.SummaryRecord{}, ErrNotFound
	}
	return updated, nil
}

// RecordsByOwner returns every record the owner has created.
func (a *App) RecordsByOwner(ownerID string) ([]domain.SummaryRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrMissingRequiredField
	}
	return a.store.ListByOwner(ownerID)
}

// UpdateFeedback applies a bounded partial update of the feedback field.
// Re-applying the same rating is a no-op in effect; a different rating
// overwrites with no retained history.
func (a *App) UpdateFeedback(id string, rating int) (domain.SummaryRecord, error) {
	if rating < 1 || rating > 5 {
		return domain.SummaryRecord{}, ErrInvalidRating
	}
	rec, ok, err := a.store.UpdateFeedback(id, rating)
	if err != nil {
		return domain.SummaryRecord{}, err
	}
	if !ok {
		return domain.SummaryRecord{}, ErrNotFound
	}
	return rec, nil
}

func contentValid(c domain.Content) bool {
	return strings.TrimSpace(c.Text) != "" && c.WordCount >= 0 && c.SentenceCount >= 0
}
