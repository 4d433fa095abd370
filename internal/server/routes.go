package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/events"
	"cardroom-server/internal/session"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrRateLimited = errors.New("RATE_LIMIT_EXCEEDED: Too many messages, slow down")
	ErrInvalidJSON = errors.New("INVALID_JSON: Message is not valid JSON")
)

const disconnectTimeout = 5 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.HelloWorldHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.logMiddleware(s.corsMiddleware(mux))
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.backends.Health(r.Context())
	health["server"] = map[string]string{
		"status":      "up",
		"connections": fmt.Sprint(s.connectionManager.Count()),
	}

	status := http.StatusOK
	if health["store"]["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Warn("Failed to write response")
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("Failed to open websocket")
		return
	}
	s.handlers.Add(1)
	defer s.handlers.Done()
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.NewString()
	log := s.log.WithField("conn", connectionID)

	log.Info("New connection")
	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer s.closeConnection(ctx, connectionID, log)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.WithError(err).Debug("Connection read ended")
			return
		}
		s.connectionHealth.UpdateActivity(connectionID)

		if msgType != websocket.MessageText {
			log.Debug("Ignoring non-text message")
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			log.Warn("Rate limit exceeded")
			s.deliver(ctx, []events.Event{events.ErrorTo(connectionID, ErrRateLimited)})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("Invalid JSON")
			s.deliver(ctx, []events.Event{events.ErrorTo(connectionID, ErrInvalidJSON)})
			continue
		}

		log.WithField("type", msg.Type).Debug("Message received")
		s.deliver(ctx, s.handleMessage(ctx, connectionID, msg))
	}
}

// closeConnection unseats the player once the socket is gone. The request
// context is already cancelled by then, so the room update gets its own.
func (s *Server) closeConnection(ctx context.Context, connectionID string, log logrus.FieldLogger) {
	s.connectionManager.RemoveConnection(connectionID)
	s.rateLimiter.RemoveConnection(connectionID)
	s.connectionHealth.RemoveConnection(connectionID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()

	evs, err := s.engine.Disconnect(ctx, connectionID)
	if err != nil {
		log.WithError(err).Error("Failed to reconcile disconnect")
	}
	s.deliver(ctx, evs)
	log.Info("Connection closed")
}

// handleMessage routes one client message to the session engine and returns
// the events to deliver. Engine errors are already rendered as events.
func (s *Server) handleMessage(ctx context.Context, connectionID string, msg ClientMessage) []events.Event {
	if err := ValidateMessageType(msg.Type); err != nil {
		return []events.Event{events.ErrorTo(connectionID, err)}
	}

	var evs []events.Event
	switch msg.Type {
	case "ping":
		evs = []events.Event{events.ToConn(connectionID, "pong", struct{}{})}

	case "create_room":
		var req CreateRoomRequest
		if err := decodePayload(msg, &req); err != nil {
			return errorEvents(connectionID, err)
		}
		evs, _ = s.engine.CreateRoom(ctx, req.Room, req.Username, connectionID)

	case "join_room":
		var req JoinRoomRequest
		if err := decodePayload(msg, &req); err != nil {
			return errorEvents(connectionID, err)
		}
		evs, _ = s.engine.JoinRoom(ctx, req.Room, req.Username, connectionID)

	case "ready":
		evs, _ = s.engine.Ready(ctx, connectionID)

	case "play_card":
		var req PlayCardRequest
		if err := decodePayload(msg, &req); err != nil {
			return errorEvents(connectionID, err)
		}
		card, err := cards.ParseCard(req.Card)
		if err != nil {
			return errorEvents(connectionID, session.ErrInvalidCard)
		}
		evs, _ = s.engine.PlayCard(ctx, connectionID, card)

	case "leave_room":
		evs, _ = s.engine.Leave(ctx, connectionID)

	case "join":
		var req JoinChatRequest
		if err := decodePayload(msg, &req); err != nil {
			return errorEvents(connectionID, err)
		}
		evs, _ = s.engine.JoinChat(ctx, req.Room, req.Username, connectionID)

	case "send_message":
		var req SendMessageRequest
		if err := decodePayload(msg, &req); err != nil {
			return errorEvents(connectionID, err)
		}
		evs, _ = s.engine.SendMessage(ctx, connectionID, req.Message)
	}
	return evs
}

func decodePayload(msg ClientMessage, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("INVALID_PAYLOAD: Invalid %s payload", msg.Type)
	}
	return nil
}

func errorEvents(connectionID string, err error) []events.Event {
	return []events.Event{events.ErrorTo(connectionID, err)}
}

func (s *Server) deliver(ctx context.Context, evs []events.Event) {
	events.Deliver(ctx, s.dispatcher, evs, s.log)
}
