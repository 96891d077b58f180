package ocr

import (
	"time"

	"github.com/franckalain/scaneats/internal/models"
)

// Input is one recognition request.
type Input struct {
	ID       string
	Image    []byte
	MIMEType string
	// Path, when set, points at a file holding Image. Engines that read
	// from disk may prefer it.
	Path      string
	Languages []string
	// Progress receives engine progress events. It may be nil.
	Progress ProgressFunc
}

// Report forwards a progress event when a listener is attached.
func (in Input) Report(p Progress) {
	if in.Progress != nil {
		in.Progress(p)
	}
}

// Result is what an engine recognized.
type Result struct {
	Text     string
	Language string
	Engine   string
	Duration time.Duration
}

// Progress stages.
const (
	StageQueued      = "queued"
	StageRecognizing = "recognizing"
	StageDone        = "done"
)

// Progress is an observability event. Nothing depends on it being delivered.
type Progress struct {
	Stage   string        `json:"stage"`
	Engine  string        `json:"engine"`
	Elapsed time.Duration `json:"elapsed"`
}

// ProgressFunc is called for every progress event.
type ProgressFunc func(Progress)

// InputOption mutates an Input before it is handed to the engine.
type InputOption func(*Input)

// WithPath points the engine at an on-disk copy of the image.
func WithPath(path string) InputOption {
	return func(in *Input) { in.Path = path }
}

// WithID sets a correlation ID.
func WithID(id string) InputOption {
	return func(in *Input) { in.ID = id }
}

// WithProgress attaches a progress listener.
func WithProgress(fn ProgressFunc) InputOption {
	return func(in *Input) { in.Progress = fn }
}

// NewInput builds an Input from an uploaded image.
func NewInput(img models.RawImage, opts ...InputOption) Input {
	in := Input{Image: img.Data, MIMEType: img.MIMEType}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// EngineConfig carries the settings of every backend; each factory reads its
// own section.
type EngineConfig struct {
	Tesseract TesseractConfig
	Vertex    VertexConfig
}

// TesseractConfig configures the local Tesseract engine.
type TesseractConfig struct {
	// PageSegMode is Tesseract's --psm value; 0 keeps the library default.
	PageSegMode int
}

// VertexConfig configures the Vertex AI Gemini engine.
type VertexConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}
