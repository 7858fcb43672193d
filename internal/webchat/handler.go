// Package webchat serves the dashboard's live chat over a websocket.
package webchat

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// Frame types.
const (
	FrameChat         = "chat"
	FrameStatus       = "status"
	FrameTriageUpdate = "triage_update"
	FrameComplete     = "complete"
	FramePing         = "ping"
	FramePong         = "pong"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundFrame is what the dashboard sends: {"type":"chat","data":{"message":"..."}}.
type InboundFrame struct {
	Type string `json:"type"`
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

// ChatData carries a message for the patient.
type ChatData struct {
	Message string `json:"message"`
}

// StatusData signals progress, e.g. {"state":"thinking"}.
type StatusData struct {
	State string `json:"state"`
}

// CompleteData closes an intake.
type CompleteData struct {
	ResultType   conversation.TurnKind `json:"result_type"`
	Result       any                   `json:"result"`
	Confirmation string                `json:"confirmation"`
}

// SessionEnsurer creates a session row on first contact.
type SessionEnsurer interface {
	Ensure(ctx context.Context, id string) error
}

// Handler runs chat turns for one websocket per session.
type Handler struct {
	runner   conversation.TurnRunner
	sessions SessionEnsurer
	logger   *logging.Logger
}

// NewHandler creates a web chat handler. sessions may be nil.
func NewHandler(runner conversation.TurnRunner, sessions SessionEnsurer, logger *logging.Logger) *Handler {
	if runner == nil {
		panic("webchat: turn runner cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{runner: runner, sessions: sessions, logger: logger}
}

// HandleWebSocket upgrades /ws/{sessionID} and serves chat frames until the
// client disconnects.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, sessionID)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, sessionID string) {
	if h.sessions != nil {
		if err := h.sessions.Ensure(ctx, sessionID); err != nil {
			h.logger.Error("webchat: failed to ensure session", "session_id", sessionID, "error", err)
		}
	}
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundFrame
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case FramePing:
			h.send(conn, Frame{Type: FramePong})
			continue
		case FrameChat:
		default:
			continue
		}

		text := strings.TrimSpace(msg.Data.Message)
		if text == "" {
			continue
		}
		h.processMessage(ctx, conn, sessionID, text)
	}
}

func (h *Handler) processMessage(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	h.send(conn, Frame{Type: FrameStatus, Data: StatusData{State: "thinking"}})

	result, err := h.runner.RunTurn(ctx, sessionID, text)
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		result = conversation.ApologyResult(sessionID)
	}

	for _, frame := range Frames(result) {
		if !h.send(conn, frame) {
			return
		}
	}
}

// Frames renders a turn result as the outbound frames the dashboard expects.
func Frames(result *conversation.TurnResult) []Frame {
	if result == nil {
		return nil
	}
	var frames []Frame
	if result.Partial != nil {
		frames = append(frames, Frame{Type: FrameTriageUpdate, Data: result.Partial})
	}
	if !result.Terminal() {
		return append(frames, Frame{Type: FrameChat, Data: ChatData{Message: result.Content}})
	}

	var packet any
	switch {
	case result.Booking != nil:
		packet = result.Booking
	case result.Handoff != nil:
		packet = result.Handoff
	}
	if result.Intake != nil {
		frames = append(frames, Frame{Type: FrameTriageUpdate, Data: result.Intake})
	}
	return append(frames, Frame{Type: FrameComplete, Data: CompleteData{
		ResultType:   result.Kind,
		Result:       packet,
		Confirmation: result.Content,
	}})
}

func (h *Handler) send(conn *websocket.Conn, frame Frame) bool {
	if err := websocket.JSON.Send(conn, frame); err != nil {
		h.logger.Debug("webchat: send failed", "type", frame.Type, "error", err)
		return false
	}
	return true
}
