// Package server exposes the scan pipeline over a websocket protocol and a
// multipart HTTP route.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/franckalain/scaneats/internal/database"
	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/pipeline"
)

// DefaultMaxUploadBytes caps one uploaded image on every route.
const DefaultMaxUploadBytes = 10 << 20

// wsEnvelopeBytes is the allowance for the JSON fields around a base64 image.
const wsEnvelopeBytes = 64 << 10

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Scanner runs one scan.
type Scanner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// History lists a user's saved entries, newest first.
type History interface {
	GetRecentEntries(ctx context.Context, userID string, limit int) ([]*models.NutritionEntry, error)
}

// Options configure a Server.
type Options struct {
	StaticDir      string
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Logger         *slog.Logger
	Now            func() time.Time
}

// Server handles websocket clients and HTTP uploads.
type Server struct {
	scanner   Scanner
	history   History
	staticDir string
	gatherer  prometheus.Gatherer
	maxUpload int64
	logger    *slog.Logger
	now       func() time.Time
	clients   sync.Map
}

// New creates a Server.
func New(scanner Scanner, history History, opts Options) *Server {
	s := &Server{
		scanner:   scanner,
		history:   history,
		staticDir: opts.StaticDir,
		gatherer:  opts.Gatherer,
		maxUpload: opts.MaxUploadBytes,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/ocr/{userId}", s.handleUpload)
	mux.HandleFunc("GET /api/history/{userId}", s.handleHistory)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// Start serves on port until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// historyResponse is the reply to get_history.
type historyResponse struct {
	Items     []*models.NutritionEntry `json:"items"`
	DayTotal  Totals                   `json:"day_total"`
	WeekTotal Totals                   `json:"week_total"`
}

// Totals sums the headline nutrients of a period.
type Totals struct {
	Calories       float64 `json:"calories"`
	Protein        float64 `json:"protein"`
	Carbs          float64 `json:"carbs"`
	Fat            float64 `json:"fat"`
	CaloriesToBurn float64 `json:"caloriesToBurn"`
	StepsNeeded    int     `json:"stepsNeeded"`
}

func (t *Totals) add(e *models.NutritionEntry) {
	t.Calories += e.Calories
	t.Protein += e.Protein
	t.Carbs += e.Carbs
	t.Fat += e.Fat
	t.CaloriesToBurn += e.CaloriesToBurn
	t.StepsNeeded += e.StepsNeeded
}

func (s *Server) loadHistory(ctx context.Context, userID string, limit int) (*historyResponse, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user ID format: %w", err)
	}
	if limit <= 0 {
		limit = database.DefaultHistoryLimit
	}
	entries, err := s.history.GetRecentEntries(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.NutritionEntry{}
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))

	resp := &historyResponse{Items: entries}
	for _, e := range entries {
		if e.CreatedAt.Before(startOfWeek) {
			continue
		}
		resp.WeekTotal.add(e)
		if !e.CreatedAt.Before(startOfDay) {
			resp.DayTotal.add(e)
		}
	}
	return resp, nil
}
