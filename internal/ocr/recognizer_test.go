package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/ocr"
	"github.com/franckalain/scaneats/internal/ocr/ocrtest"
)

var img = models.RawImage{Name: "label.png", MIMEType: "image/png", Data: []byte{1, 2, 3}}

func TestRecognizeReturnsTrimmedText(t *testing.T) {
	engine := &ocrtest.Engine{Text: "  Calories 120\n"}
	r := ocr.NewRecognizer(engine, ocr.RecognizerOptions{}, nil)

	text, err := r.Recognize(context.Background(), img, ocr.WithPath("/tmp/x.png"), ocr.WithID("scan-1"))
	require.NoError(t, err)
	assert.Equal(t, "Calories 120", text)

	inputs := engine.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, []string{"eng"}, inputs[0].Languages)
	assert.Equal(t, "/tmp/x.png", inputs[0].Path)
	assert.Equal(t, "scan-1", inputs[0].ID)
	assert.Equal(t, img.Data, inputs[0].Image)
	assert.Equal(t, "image/png", inputs[0].MIMEType)
}

func TestRecognizeUsesConfiguredLanguage(t *testing.T) {
	engine := &ocrtest.Engine{Text: "ok"}
	r := ocr.NewRecognizer(engine, ocr.RecognizerOptions{Language: "deu"}, nil)
	_, err := r.Recognize(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, []string{"deu"}, engine.Inputs()[0].Languages)
}

func TestRecognizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		engine *ocrtest.Engine
		reason ocr.Reason
	}{
		{name: "engine error", engine: &ocrtest.Engine{Err: errors.New("tesseract missing")}, reason: ocr.ReasonUnavailable},
		{name: "unreadable", engine: &ocrtest.Engine{Err: fmt.Errorf("set image: %w", ocr.ErrUnreadable)}, reason: ocr.ReasonUnreadable},
		{name: "empty text", engine: &ocrtest.Engine{Text: ""}, reason: ocr.ReasonEmpty},
		{name: "blank text", engine: &ocrtest.Engine{Text: " \n\t "}, reason: ocr.ReasonEmpty},
		{name: "slow engine", engine: &ocrtest.Engine{Text: "late", Delay: time.Second}, reason: ocr.ReasonTimeout},
		{name: "engine ignores context", engine: &ocrtest.Engine{Text: "late", Delay: time.Second, IgnoreContext: true}, reason: ocr.ReasonTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ocr.NewRecognizer(tt.engine, ocr.RecognizerOptions{Timeout: 50 * time.Millisecond}, nil)
			start := time.Now()
			text, err := r.Recognize(context.Background(), img)
			assert.Empty(t, text)
			require.Error(t, err)
			assert.Less(t, time.Since(start), 900*time.Millisecond)

			var rerr *ocr.RecognitionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.reason, rerr.Reason)
			assert.Equal(t, "stub", rerr.Engine)
			assert.True(t, ocr.IsRecognitionError(err))
		})
	}
}

func TestRecognizeCanceledByCaller(t *testing.T) {
	r := ocr.NewRecognizer(&ocrtest.Engine{Text: "x", Delay: time.Second}, ocr.RecognizerOptions{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Recognize(ctx, img)
	var rerr *ocr.RecognitionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ocr.ReasonCanceled, rerr.Reason)
}

func TestRecognizeReportsProgress(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []string
	)
	progress := func(p ocr.Progress) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, p.Stage)
		assert.Equal(t, "stub", p.Engine)
	}

	r := ocr.NewRecognizer(&ocrtest.Engine{Text: "ok"}, ocr.RecognizerOptions{}, nil)
	_, err := r.Recognize(context.Background(), img, ocr.WithProgress(progress))
	require.NoError(t, err)
	assert.Equal(t, []string{ocr.StageQueued, ocr.StageRecognizing, ocr.StageDone}, stages)
}

func TestRecognizeWithoutProgressListener(t *testing.T) {
	r := ocr.NewRecognizer(&ocrtest.Engine{Text: "ok"}, ocr.RecognizerOptions{}, nil)
	assert.NotPanics(t, func() {
		_, _ = r.Recognize(context.Background(), img)
	})
}

func TestRecognitionErrorMessage(t *testing.T) {
	err := &ocr.RecognitionError{Engine: "tesseract", Reason: ocr.ReasonTimeout, Err: context.DeadlineExceeded}
	assert.Equal(t, "ocr tesseract: timeout: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	empty := &ocr.RecognitionError{Engine: "stub", Reason: ocr.ReasonEmpty}
	assert.Equal(t, "ocr stub: empty", empty.Error())
}

func TestNewEngineUnknown(t *testing.T) {
	_, err := ocr.NewEngine("does-not-exist", ocr.EngineConfig{})
	assert.ErrorContains(t, err, "unsupported ocr engine")
}

func TestRegisterAndNewEngine(t *testing.T) {
	stub := &ocrtest.Engine{Text: "x"}
	ocr.Register("test-stub", func(cfg ocr.EngineConfig) (ocr.Engine, error) { return stub, nil })

	e, err := ocr.NewEngine("test-stub", ocr.EngineConfig{})
	require.NoError(t, err)
	assert.Same(t, stub, e)
	assert.Contains(t, ocr.Engines(), "test-stub")
}
