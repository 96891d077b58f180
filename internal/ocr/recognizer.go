package ocr

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/franckalain/scaneats/internal/models"
)

const (
	DefaultLanguage = "eng"
	DefaultTimeout  = 30 * time.Second
)

// RecognizerOptions configure the adapter around an engine.
type RecognizerOptions struct {
	// Language is the fixed hint passed to the engine.
	Language string
	// Timeout bounds every Recognize call.
	Timeout time.Duration
}

// Recognizer invokes an Engine with a bounded wait and turns every failure
// into a RecognitionError. It is safe for concurrent use if the engine is.
type Recognizer struct {
	engine   Engine
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRecognizer wraps engine. Zero options take the package defaults.
func NewRecognizer(engine Engine, opts RecognizerOptions, logger *slog.Logger) *Recognizer {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{engine: engine, language: opts.Language, timeout: opts.Timeout, logger: logger}
}

// Engine returns the name of the wrapped engine.
func (r *Recognizer) Engine() string { return r.engine.Name() }

// Recognize returns the non-blank text recognized in img. Engines that ignore
// cancellation are abandoned once the timeout passes.
func (r *Recognizer) Recognize(ctx context.Context, img models.RawImage, opts ...InputOption) (string, error) {
	in := NewInput(img, opts...)
	in.Languages = []string{r.language}
	name := r.engine.Name()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	in.Report(Progress{Stage: StageQueued, Engine: name})
	in.Report(Progress{Stage: StageRecognizing, Engine: name, Elapsed: time.Since(start)})
	go func() {
		res, err := r.engine.Recognize(ctx, in)
		done <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case <-ctx.Done():
		return "", r.fail(in, classifyContext(ctx.Err()), ctx.Err(), start)
	case o = <-done:
	}
	if o.err != nil {
		return "", r.fail(in, classify(o.err), o.err, start)
	}

	text := strings.TrimSpace(o.res.Text)
	if text == "" {
		return "", r.fail(in, ReasonEmpty, nil, start)
	}
	in.Report(Progress{Stage: StageDone, Engine: name, Elapsed: time.Since(start)})
	r.logger.Debug("Recognized label text",
		slog.String("engine", name),
		slog.String("id", in.ID),
		slog.Int("chars", len(text)),
		slog.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (r *Recognizer) fail(in Input, reason Reason, err error, start time.Time) error {
	rerr := &RecognitionError{Engine: r.engine.Name(), Reason: reason, Err: err}
	r.logger.Warn("Text recognition failed",
		slog.String("engine", rerr.Engine),
		slog.String("id", in.ID),
		slog.String("reason", string(reason)),
		slog.Duration("elapsed", time.Since(start)),
		slog.Any("error", err))
	return rerr
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, ErrUnreadable):
		return ReasonUnreadable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return classifyContext(err)
	}
	return ReasonUnavailable
}

func classifyContext(err error) Reason {
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	return ReasonTimeout
}
