package vertex

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/scaneats/internal/ocr"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(VertexConfig{Location: "us-central1"})
	assert.ErrorContains(t, err, "project_id")

	_, err = New(VertexConfig{ProjectID: "p"})
	assert.ErrorContains(t, err, "location")

	e, err := New(VertexConfig{ProjectID: "p", Location: "us-central1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.config.Model)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, ocr.Engines(), Name)

	_, err := ocr.NewEngine(Name, ocr.EngineConfig{})
	assert.Error(t, err)

	e, err := ocr.NewEngine(Name, ocr.EngineConfig{Vertex: ocr.VertexConfig{ProjectID: "p", Location: "eu"}})
	require.NoError(t, err)
	assert.Equal(t, Name, e.Name())
}

func TestRecognizeRequiresLoad(t *testing.T) {
	e, err := New(VertexConfig{ProjectID: "p", Location: "eu"})
	require.NoError(t, err)
	_, err = e.Recognize(context.Background(), ocr.Input{Image: []byte{1}})
	assert.ErrorContains(t, err, "model not loaded")
	assert.NoError(t, e.Close())
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "jpeg", imageFormat("image/jpeg"))
	assert.Equal(t, "jpeg", imageFormat("IMAGE/JPG"))
	assert.Equal(t, "png", imageFormat("image/png"))
	assert.Equal(t, "webp", imageFormat("image/webp"))
	assert.Equal(t, "png", imageFormat("application/octet-stream"))
	assert.Equal(t, "png", imageFormat(""))
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{
			genai.Text("```\nCalories 230\n"),
			genai.Text("Total Fat 8g 10%\n```"),
		}},
	}}}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "Calories 230\nTotal Fat 8g 10%", text)
}

func TestResponseTextErrors(t *testing.T) {
	_, err := responseText(nil)
	assert.ErrorContains(t, err, "no response")

	_, err = responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}})
	assert.ErrorContains(t, err, "no content")
}
