package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/ocr"
	"github.com/franckalain/scaneats/internal/pipeline"
)

// Message types of the websocket protocol.
const (
	TypeScan       = "scan"
	TypeGetHistory = "get_history"
	TypeProgress   = "progress"
	TypeScanResult = "scan_result"
	TypeHistory    = "history"
	TypeError      = "error"
)

// message is the envelope of every websocket frame.
type message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type scanData struct {
	UserID string `json:"user_id"`
	// Image is base64, optionally as a data URL.
	Image    string `json:"image"`
	Name     string `json:"name"`
	MIME     string `json:"mime"`
	FoodName string `json:"food_name"`
}

type historyData struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type progressData struct {
	ScanID string `json:"scan_id"`
	ocr.Progress
}

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(base64.StdEncoding.EncodedLen(int(s.maxUpload))) + wsEnvelopeBytes)

	c := &client{conn: conn}
	clientID := uuid.New().String()
	s.clients.Store(clientID, c)
	defer s.clients.Delete(clientID)

	log := s.logger.With(slog.String("client_id", clientID))
	log.Debug("Client connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Error reading message", slog.String("error", err.Error()))
			}
			break
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("Error parsing message", slog.String("error", err.Error()))
			s.sendError(c, "Invalid message format")
			continue
		}

		s.handleWebSocketMessage(r.Context(), c, msg, log)
	}
	log.Debug("Client disconnected")
}

func (s *Server) handleWebSocketMessage(ctx context.Context, c *client, msg message, log *slog.Logger) {
	switch msg.Type {
	case TypeScan:
		var data scanData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			s.sendError(c, "Invalid scan data")
			return
		}
		s.handleScan(ctx, c, data)
	case TypeGetHistory:
		var data historyData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			s.sendError(c, "Invalid history request")
			return
		}
		s.handleGetHistory(ctx, c, data, log)
	case "":
		s.sendError(c, "Invalid message format")
	default:
		s.sendError(c, "Unknown message type")
	}
}

func (s *Server) handleScan(ctx context.Context, c *client, data scanData) {
	scanID := uuid.New().String()
	req := pipeline.Request{
		UserID:   data.UserID,
		FoodName: data.FoodName,
		ScanID:   scanID,
		Progress: func(p ocr.Progress) {
			s.sendMessage(c, TypeProgress, progressData{ScanID: scanID, Progress: p})
		},
	}

	img, err := decodeImage(data.Image)
	if err != nil {
		s.sendMessage(c, TypeScanResult, pipeline.Response{
			ErrorKind: pipeline.KindInvalidInput,
			Message:   "Invalid image encoding",
		})
		return
	}
	if int64(len(img)) > s.maxUpload {
		s.sendMessage(c, TypeScanResult, pipeline.Response{
			ErrorKind: pipeline.KindInvalidInput,
			Message:   "Image too large",
		})
		return
	}
	req.Image = models.RawImage{Name: data.Name, MIMEType: data.MIME, Data: img}

	res, err := s.scanner.Run(ctx, req)
	s.sendMessage(c, TypeScanResult, pipeline.NewResponse(res, err))
}

func (s *Server) handleGetHistory(ctx context.Context, c *client, data historyData, log *slog.Logger) {
	resp, err := s.loadHistory(ctx, data.UserID, data.Limit)
	if err != nil {
		log.Warn("Error retrieving history", slog.String("user_id", data.UserID), slog.String("error", err.Error()))
		s.sendError(c, "Failed to retrieve history")
		return
	}
	s.sendMessage(c, TypeHistory, resp)
}

func (s *Server) sendMessage(c *client, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}
	if err := c.writeJSON(msg); err != nil {
		s.logger.Warn("Error sending message", slog.String("type", messageType), slog.String("error", err.Error()))
	}
}

func (s *Server) sendError(c *client, text string) {
	if err := c.writeJSON(message{Type: TypeError, Message: text}); err != nil {
		s.logger.Warn("Error sending error message", slog.String("error", err.Error()))
	}
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, value any) bool {
		c := value.(*client)
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
		return true
	})
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
