// Package tesseract registers the local Tesseract OCR engine.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/franckalain/scaneats/internal/ocr"
)

// Name is the registry key of this engine.
const Name = "tesseract"

func init() {
	ocr.Register(Name, func(cfg ocr.EngineConfig) (ocr.Engine, error) {
		return New(cfg.Tesseract), nil
	})
}

// Engine runs recognition through the gosseract bindings. A fresh client is
// created per call so concurrent scans never share Tesseract state.
type Engine struct {
	config        ocr.TesseractConfig
	clientFactory func() *gosseract.Client
}

// New creates a Tesseract engine.
func New(config ocr.TesseractConfig) *Engine {
	return &Engine{config: config, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return Name }

// Load checks that the Tesseract library answers.
func (e *Engine) Load(ctx context.Context) error {
	c := e.clientFactory()
	defer c.Close()
	if c.Version() == "" {
		return fmt.Errorf("tesseract library did not report a version")
	}
	return nil
}

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if in.Path != "" {
		if err := c.SetImage(in.Path); err != nil {
			return ocr.Result{}, fmt.Errorf("set image %s: %w: %v", in.Path, ocr.ErrUnreadable, err)
		}
	} else {
		if err := c.SetImageFromBytes(in.Image); err != nil {
			return ocr.Result{}, fmt.Errorf("set image bytes: %w: %v", ocr.ErrUnreadable, err)
		}
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.config.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.config.PageSegMode)); err != nil {
			return ocr.Result{}, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Result{Text: text, Language: firstLanguage(in.Languages), Engine: Name}, nil
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
