// Package vertex registers a Vertex AI Gemini engine that transcribes label
// text. Its output is treated exactly like any other OCR text.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/scaneats/internal/ocr"
)

// Name is the registry key of this engine.
const Name = "vertex"

// DefaultModel is used when the configuration leaves the model empty.
const DefaultModel = "gemini-1.5-flash"

func init() {
	ocr.Register(Name, func(cfg ocr.EngineConfig) (ocr.Engine, error) {
		return New(cfg.Vertex)
	})
}

const prompt = `Transcribe every line of text printed on this nutrition facts label exactly as it appears.
Keep one label line per output line and keep numbers, units and percent signs as printed.
Do not add explanations, headings, markdown or any text that is not on the label.
If the image contains no readable text, return an empty response.
Language hint: %s`

// Engine implements ocr.Engine on top of Vertex AI.
type Engine struct {
	config VertexConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// VertexConfig is the engine configuration.
type VertexConfig = ocr.VertexConfig

// New validates config and returns an unloaded engine.
func New(config VertexConfig) (*Engine, error) {
	if config.ProjectID == "" {
		return nil, errors.New("vertex: project_id is required")
	}
	if config.Location == "" {
		return nil, errors.New("vertex: location is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &Engine{config: config}, nil
}

func (e *Engine) Name() string { return Name }

// Load initializes the Vertex AI client.
func (e *Engine) Load(ctx context.Context) error {
	var opts []option.ClientOption
	if e.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(e.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, e.config.ProjectID, e.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	e.client = client
	e.model = client.GenerativeModel(e.config.Model)
	e.model.SetTemperature(0)
	return nil
}

// Close releases the client.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Recognize asks the model for a verbatim transcription of the label.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if e.model == nil {
		return ocr.Result{}, fmt.Errorf("model not loaded")
	}
	if len(in.Image) == 0 {
		return ocr.Result{}, fmt.Errorf("empty image: %w", ocr.ErrUnreadable)
	}

	lang := ocr.DefaultLanguage
	if len(in.Languages) > 0 {
		lang = in.Languages[0]
	}
	img := genai.ImageData(imageFormat(in.MIMEType), in.Image)

	resp, err := e.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(prompt, lang)), img)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("failed to call model: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return ocr.Result{}, err
	}
	return ocr.Result{Text: text, Language: lang, Engine: Name}, nil
}

// imageFormat maps a MIME type to the format genai.ImageData expects.
func imageFormat(mime string) string {
	format := strings.TrimPrefix(strings.ToLower(mime), "image/")
	switch format {
	case "jpg":
		return "jpeg"
	case "png", "jpeg", "webp", "heic", "heif":
		return format
	}
	return "png"
}

// responseText joins the text parts of the first candidate and strips any
// code fence the model wrapped around them.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), nil
}
