package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"timed-quiz-runner/internal/app"
	"timed-quiz-runner/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// questionPayload addresses a question by its 0-based index.
type questionPayload struct {
	Question int  `json:"question"`
	Option   int  `json:"option"`
	Guessed  bool `json:"guessed"`
}

type startedPayload struct {
	SessionID string `json:"sessionId"`
}

type resultPayload struct {
	domain.Result
	Summary   string `json:"summary"`
	ReportURL string `json:"reportUrl"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz session per
// connection. A sessionId query parameter reattaches to a running session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	var session *app.Session
	var err error
	if sessionID != "" {
		session, err = h.service.Session(r.Context(), sessionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if session == nil {
		session, err = h.service.Start(r.Context())
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
	}
	logger := h.logger.With(zap.String("session_id", session.ID()))

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	// The started message is queued before the update pump runs so it is always first.
	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{SessionID: session.ID()}}

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
				if snap.Result != nil && !resultSent {
					resultSent = true
					select {
					case send <- outboundMessage[any]{Type: "result", Payload: h.result(session.ID(), *snap.Result)}:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(session, inbound); err != nil {
			if errors.Is(err, domain.ErrInvalidIndex) {
				logger.Warn("rejected command", zap.String("type", inbound.Type), zap.Error(err))
			}
			if !enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer unless the writer has already exited.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// dispatch translates one client gesture into a session command.
func (h *WSHandler) dispatch(session *app.Session, inbound inboundMessage) error {
	var payload questionPayload
	if len(inbound.Payload) > 0 {
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.New("invalid " + inbound.Type + " payload")
		}
	}

	switch inbound.Type {
	case "select":
		return session.SelectOption(payload.Question, payload.Option)
	case "guess":
		return session.SetGuessed(payload.Question, payload.Guessed)
	case "navigate":
		return session.NavigateTo(payload.Question)
	case "next":
		return session.Next()
	case "prev":
		return session.Prev()
	case "submit":
		_, err := session.Submit()
		return err
	default:
		return errors.New("unsupported message type")
	}
}

func (h *WSHandler) result(sessionID string, res domain.Result) resultPayload {
	return resultPayload{
		Result:    res,
		Summary:   res.Summary(),
		ReportURL: "/report?sessionId=" + sessionID,
	}
}
