// Package imaging prepares label photos for text recognition.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/franckalain/scaneats/internal/models"
)

const (
	DefaultWidth     = 800
	DefaultContrast  = 1.5
	DefaultMaxPixels = 16_000_000
)

// Options tune the preprocessing passes.
type Options struct {
	// Width is the canonical output width in pixels. Height follows the
	// source aspect ratio.
	Width int
	// Contrast scales each pixel's distance from mid-gray. 1 disables it.
	Contrast float64
	// MaxPixels caps the source image and the resized output. Larger images
	// are not processed.
	MaxPixels int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Contrast <= 0 {
		o.Contrast = DefaultContrast
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Preprocessor resizes, grayscales, boosts contrast and normalizes an image,
// in that order. It holds no per-request state.
type Preprocessor struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Preprocessor. Zero options take the package defaults.
func New(opts Options, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{opts: opts.withDefaults(), logger: logger}
}

// Prepare is the best-effort entry point used by the pipeline. When any pass
// fails it logs the cause and returns the input unchanged with ok=false.
func (p *Preprocessor) Prepare(in models.RawImage) (models.RawImage, bool) {
	out, err := p.Process(in)
	if err != nil {
		p.logger.Warn("Image preprocessing failed, using original",
			slog.String("name", in.Name),
			slog.String("mime", in.MIMEType),
			slog.Int("bytes", len(in.Data)),
			slog.String("error", err.Error()))
		return in, false
	}
	return out, true
}

// Process runs every pass and returns a grayscale PNG.
func (p *Preprocessor) Process(in models.RawImage) (models.RawImage, error) {
	if len(in.Data) == 0 {
		return models.RawImage{}, errors.New("empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return models.RawImage{}, fmt.Errorf("decode image header: %w", err)
	}
	if exceeds(cfg.Width, cfg.Height, p.opts.MaxPixels) {
		return models.RawImage{}, fmt.Errorf("source %dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}
	src, format, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		return models.RawImage{}, fmt.Errorf("decode image: %w", err)
	}

	resized, err := Resize(src, p.opts.Width, p.opts.MaxPixels)
	if err != nil {
		return models.RawImage{}, err
	}
	gray := Grayscale(resized)
	Contrast(gray, p.opts.Contrast)
	Normalize(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return models.RawImage{}, fmt.Errorf("encode png: %w", err)
	}
	p.logger.Debug("Preprocessed image",
		slog.String("source_format", format),
		slog.Int("width", gray.Bounds().Dx()),
		slog.Int("height", gray.Bounds().Dy()))

	return models.RawImage{Name: in.Name, MIMEType: "image/png", Data: buf.Bytes()}, nil
}

// ErrTooLarge reports an image over the configured pixel budget.
var ErrTooLarge = errors.New("image exceeds pixel limit")

// exceeds reports whether a w x h image holds more than limit pixels.
func exceeds(w, h, limit int) bool {
	return limit > 0 && float64(w)*float64(h) > float64(limit)
}

// Resize scales img to width, keeping its aspect ratio. A positive maxPixels
// rejects outputs larger than that many pixels.
func Resize(img image.Image, width, maxPixels int) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid image bounds %v", b)
	}
	h := math.Max(1, math.Round(float64(b.Dy())*float64(width)/float64(b.Dx())))
	if maxPixels > 0 && float64(width)*h > float64(maxPixels) {
		return nil, fmt.Errorf("resized %dx%.0f: %w", width, h, ErrTooLarge)
	}
	height := int(h)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// Grayscale converts img to a single-channel image.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Contrast pushes pixels away from mid-gray by factor, in place.
func Contrast(img *image.Gray, factor float64) {
	if factor == 1 {
		return
	}
	for i, v := range img.Pix {
		img.Pix[i] = clamp((float64(v)-128)*factor + 128)
	}
}

// Normalize stretches the pixel range to span 0..255, in place. Uniform
// images are left untouched.
func Normalize(img *image.Gray) {
	if len(img.Pix) == 0 {
		return
	}
	lo, hi := img.Pix[0], img.Pix[0]
	for _, v := range img.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo || (lo == 0 && hi == 255) {
		return
	}
	span := float64(hi - lo)
	for i, v := range img.Pix {
		img.Pix[i] = clamp(float64(v-lo) * 255 / span)
	}
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}
