package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/franckalain/scaneats/internal/config"
	"github.com/franckalain/scaneats/internal/database"
	"github.com/franckalain/scaneats/internal/imaging"
	"github.com/franckalain/scaneats/internal/metrics"
	"github.com/franckalain/scaneats/internal/ocr"
	"github.com/franckalain/scaneats/internal/pipeline"
)

// app holds the components built from one Config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       database.DB
	engine   ocr.Engine
	registry *prometheus.Registry
	pipeline *pipeline.Pipeline
}

func newLogger(w io.Writer, level string, debug bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	return config.Load(config.GetConfigPath())
}

// openDB opens only the store, for commands that never scan.
func openDB(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := database.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

// newApp wires the full pipeline. A nil engine is built from cfg.OCR.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, engine ocr.Engine) (*app, error) {
	a, err := openDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	if engine == nil {
		engine, err = ocr.NewEngine(cfg.OCR.Engine, engineConfig(cfg.OCR))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create ocr engine: %w", err)
		}
	}
	if err := engine.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load ocr engine %s: %w", engine.Name(), err)
	}
	a.engine = engine

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recognizer := ocr.NewRecognizer(engine, ocr.RecognizerOptions{
		Language: cfg.OCR.Language,
		Timeout:  cfg.OCR.Timeout,
	}, logger)
	preprocessor := imaging.New(imaging.Options{
		Width:     cfg.Preprocess.Width,
		Contrast:  cfg.Preprocess.Contrast,
		MaxPixels: cfg.Preprocess.MaxPixels,
	}, logger)

	a.pipeline = pipeline.New(a.db, a.db, preprocessor, recognizer, pipeline.Options{
		ScratchDir: cfg.Scratch.Dir,
		Metrics:    metrics.New(a.registry),
		Scans:      a.db,
		Logger:     logger,
	})

	logger.Info("ScanEats ready",
		slog.String("engine", engine.Name()),
		slog.String("database", cfg.Database.Path),
		slog.String("scratch_dir", cfg.Scratch.Dir))
	return a, nil
}

func engineConfig(c config.OCRConfig) ocr.EngineConfig {
	return ocr.EngineConfig{
		Tesseract: ocr.TesseractConfig{PageSegMode: c.PSM},
		Vertex: ocr.VertexConfig{
			ProjectID:       c.Vertex.ProjectID,
			Location:        c.Vertex.Location,
			CredentialsFile: c.Vertex.CredentialsFile,
			Model:           c.Vertex.Model,
		},
	}
}

func (a *app) Close() {
	if closer, ok := a.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("Failed to close ocr engine", slog.String("error", err.Error()))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", slog.String("error", err.Error()))
		}
	}
}

func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
