// Package pipeline runs one label scan end to end: input checks, profile
// lookup, preprocessing, recognition, extraction, energy estimate and the
// single insert of the resulting entry.
//
// Runs share no mutable state, so any number may execute concurrently.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franckalain/scaneats/internal/energy"
	"github.com/franckalain/scaneats/internal/extract"
	"github.com/franckalain/scaneats/internal/metrics"
	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/ocr"
)

// DefaultFoodName is stored when neither the request nor the upload names
// the food.
const DefaultFoodName = "Scanned item"

// ProfileSource is the Identity Provider.
type ProfileSource interface {
	GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error)
}

// EntryStore is the Record Store.
type EntryStore interface {
	InsertEntry(ctx context.Context, entry *models.NutritionEntry) (string, error)
}

// Preprocessor prepares an image for recognition without ever failing.
type Preprocessor interface {
	Prepare(img models.RawImage) (models.RawImage, bool)
}

// Recognizer turns an image into text or returns a RecognitionError.
type Recognizer interface {
	Recognize(ctx context.Context, img models.RawImage, opts ...ocr.InputOption) (string, error)
	Engine() string
}

// ScanLog keeps the audit trail of runs. Its failures never fail a scan.
type ScanLog interface {
	SaveScan(ctx context.Context, scan *models.ScanRecord) error
	UpdateScanStatus(ctx context.Context, id, status, errorKind, errMsg, entryID string) error
}

// Options carry the optional collaborators of a Pipeline.
type Options struct {
	// ScratchDir holds per-run image files. Defaults to a directory under
	// os.TempDir().
	ScratchDir string
	Extractor  *extract.Extractor
	Metrics    *metrics.Metrics
	Scans      ScanLog
	Logger     *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Pipeline wires the scan stages together.
type Pipeline struct {
	profiles     ProfileSource
	store        EntryStore
	preprocessor Preprocessor
	recognizer   Recognizer
	extractor    *extract.Extractor
	scratchDir   string
	metrics      *metrics.Metrics
	scans        ScanLog
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Pipeline.
func New(profiles ProfileSource, store EntryStore, pre Preprocessor, rec Recognizer, opts Options) *Pipeline {
	p := &Pipeline{
		profiles:     profiles,
		store:        store,
		preprocessor: pre,
		recognizer:   rec,
		extractor:    opts.Extractor,
		scratchDir:   opts.ScratchDir,
		metrics:      opts.Metrics,
		scans:        opts.Scans,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if p.extractor == nil {
		p.extractor = extract.New(nil)
	}
	if p.scratchDir == "" {
		p.scratchDir = filepath.Join(os.TempDir(), "scaneats")
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Request is one inbound scan.
type Request struct {
	UserID   string
	FoodName string
	Image    models.RawImage
	// ScanID correlates logs and progress events; generated when empty.
	ScanID   string
	Progress ocr.ProgressFunc
}

// Result is everything computed by a run.
type Result struct {
	ScanID    string
	EntryID   string
	Saved     bool
	FoodName  string
	Text      string
	Nutrition models.NutrientRecord
	User      models.UserProfile
	Estimate  models.EnergyEstimate
	CreatedAt time.Time
}

// Run executes the pipeline. On a storage failure after computation both the
// Result (with Saved=false) and an error of KindStorage are returned; every
// other error comes with a nil Result. Invalid requests are rejected before
// anything is recorded.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ScanID == "" {
		req.ScanID = uuid.New().String()
	}
	log := p.logger.With(slog.String("scan_id", req.ScanID), slog.String("user_id", req.UserID))

	img, err := validate(req)
	if err != nil {
		log.Debug("Rejected scan request", slog.String("error", err.Error()))
		return nil, err
	}

	p.auditStart(ctx, req, log)
	res, err := p.run(ctx, req, img, log)
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		log.Warn("Scan failed", slog.String("kind", outcome), slog.String("error", err.Error()))
	}
	p.metrics.ScanFinished(outcome)
	p.auditFinish(context.WithoutCancel(ctx), req.ScanID, res, err, log)
	return res, err
}

func (p *Pipeline) auditStart(ctx context.Context, req Request, log *slog.Logger) {
	if p.scans == nil {
		return
	}
	now := p.now()
	scan := &models.ScanRecord{
		ID:        req.ScanID,
		UserID:    req.UserID,
		Status:    models.ScanPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.scans.SaveScan(ctx, scan); err != nil {
		log.Warn("Failed to record scan", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) auditFinish(ctx context.Context, scanID string, res *Result, runErr error, log *slog.Logger) {
	if p.scans == nil {
		return
	}
	status, kind, msg, entryID := models.ScanCompleted, "", "", ""
	if res != nil {
		entryID = res.EntryID
	}
	if runErr != nil {
		status, kind, msg = models.ScanFailed, string(KindOf(runErr)), runErr.Error()
	}
	if err := p.scans.UpdateScanStatus(ctx, scanID, status, kind, msg, entryID); err != nil {
		log.Warn("Failed to update scan status", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) run(ctx context.Context, req Request, img models.RawImage, log *slog.Logger) (*Result, error) {
	scratch, err := spool(p.scratchDir, img, log)
	if err != nil {
		// The engine can still read the bytes directly.
		log.Warn("Could not spool image to scratch", slog.String("error", err.Error()))
	} else {
		defer scratch.release()
	}

	profile, err := p.profiles.GetUserProfile(ctx, req.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, newError(KindInternal, "Could not load user profile", err)
	}

	prepared, ok := p.preprocessor.Prepare(img)
	if !ok {
		p.metrics.PreprocessFallback()
	}
	opts := []ocr.InputOption{ocr.WithID(req.ScanID), ocr.WithProgress(req.Progress)}
	if scratch != nil {
		if err := scratch.replace(prepared.Data); err != nil {
			log.Warn("Could not write preprocessed image to scratch", slog.String("error", err.Error()))
		} else {
			opts = append(opts, ocr.WithPath(scratch.path))
		}
	}

	start := p.now()
	text, err := p.recognizer.Recognize(ctx, prepared, opts...)
	p.metrics.RecognitionObserved(p.recognizer.Engine(), p.now().Sub(start))
	if err != nil {
		return nil, newError(KindRecognition, "Recognition failed", err)
	}

	nutrition := p.extractor.Extract(text)
	for _, k := range nutrition.Detected {
		p.metrics.FieldExtracted(string(k))
	}
	estimate := energy.Estimate(nutrition.Calories, profile)

	return p.assemble(ctx, req, text, nutrition, profile, estimate, log)
}

// assemble builds the entry and makes exactly one insert attempt.
func (p *Pipeline) assemble(ctx context.Context, req Request, text string, nutrition models.NutrientRecord,
	profile models.UserProfile, estimate models.EnergyEstimate, log *slog.Logger) (*Result, error) {
	entry := &models.NutritionEntry{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		FoodName:       foodName(req),
		NutrientRecord: nutrition,
		CaloriesToBurn: estimate.CaloriesToBurn,
		StepsNeeded:    estimate.StepsNeeded,
		CreatedAt:      p.now(),
	}
	res := &Result{
		ScanID:    req.ScanID,
		FoodName:  entry.FoodName,
		Text:      text,
		Nutrition: nutrition,
		User:      profile,
		Estimate:  estimate,
		CreatedAt: entry.CreatedAt,
	}

	id, err := p.store.InsertEntry(ctx, entry)
	if err != nil {
		return res, newError(KindStorage, "Nutrition was computed but could not be saved", err)
	}
	res.EntryID = id
	res.Saved = true

	log.Info("Scan completed",
		slog.String("entry_id", id),
		slog.Float64("calories", nutrition.Calories),
		slog.Int("detected", len(nutrition.Detected)),
		slog.Float64("calories_to_burn", estimate.CaloriesToBurn),
		slog.Int("steps_needed", estimate.StepsNeeded))
	return res, nil
}

func validate(req Request) (models.RawImage, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return models.RawImage{}, newError(KindInvalidInput, "Missing user ID", nil)
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return models.RawImage{}, newError(KindInvalidInput, "Invalid user ID format", err)
	}
	img := req.Image
	if len(img.Data) == 0 {
		return models.RawImage{}, newError(KindInvalidInput, "No image uploaded", nil)
	}
	mime := strings.ToLower(strings.TrimSpace(img.MIMEType))
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return models.RawImage{}, newError(KindInvalidInput, "Unsupported file type "+mime, nil)
	}
	img.MIMEType = mime
	return img, nil
}

func foodName(req Request) string {
	if name := strings.TrimSpace(req.FoodName); name != "" {
		return name
	}
	base := filepath.Base(req.Image.Name)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return DefaultFoodName
	}
	return name
}
