package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/ocr"
	"github.com/franckalain/scaneats/internal/pipeline"
)

// StatusFor maps an error kind to the HTTP status of the upload route.
func StatusFor(kind pipeline.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindUserNotFound:
		return http.StatusNotFound
	case pipeline.KindRecognition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleUpload serves POST /api/ocr/{userId} with a multipart "image" field
// and an optional "food_name".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	scanID := uuid.New().String()
	log := s.logger.With(slog.String("scan_id", scanID), slog.String("user_id", userID))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		log.Debug("Invalid upload", slog.String("error", err.Error()))
		writeResponse(w, pipeline.Response{ErrorKind: pipeline.KindInvalidInput, Message: "Invalid multipart upload"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var img models.RawImage
	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// An empty image is rejected by the pipeline.
	case err != nil:
		writeResponse(w, pipeline.Response{ErrorKind: pipeline.KindInvalidInput, Message: "Invalid image field"})
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeResponse(w, pipeline.Response{ErrorKind: pipeline.KindInvalidInput, Message: "Could not read image"})
			return
		}
		img = models.RawImage{Name: header.Filename, MIMEType: header.Header.Get("Content-Type"), Data: data}
	}

	res, err := s.scanner.Run(r.Context(), pipeline.Request{
		UserID:   userID,
		FoodName: r.FormValue("food_name"),
		Image:    img,
		ScanID:   scanID,
		Progress: func(p ocr.Progress) {
			log.Debug("Recognition progress", slog.String("stage", p.Stage), slog.Duration("elapsed", p.Elapsed))
		},
	})
	writeResponse(w, pipeline.NewResponse(res, err))
}

// handleHistory serves GET /api/history/{userId}?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid limit"})
			return
		}
		limit = n
	}
	if _, err := uuid.Parse(userID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid user ID format"})
		return
	}

	resp, err := s.loadHistory(r.Context(), userID, limit)
	if err != nil {
		s.logger.Warn("Error retrieving history", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to retrieve history"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeResponse(w http.ResponseWriter, resp pipeline.Response) {
	writeJSON(w, StatusFor(resp.ErrorKind), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
