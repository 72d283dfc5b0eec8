package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hmansour/progression/internal/engine"
	"github.com/hmansour/progression/internal/session"
	"github.com/hmansour/progression/internal/signal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// #region messages

// inboundMessage is the envelope for client frames.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// outboundMessage is the envelope for server frames.
type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type resolvePayload struct {
	StoryID  string `json:"story_id"`
	OptionID string `json:"option_id"`
}

type choicesPayload struct {
	StoryID string `json:"story_id"`
}

type statePayload struct {
	SessionID string   `json:"session_id"`
	Unlocked  []string `json:"unlocked"`
}

// #endregion messages

// #region server

// Server exposes sessions over WebSocket: inbound signal mutations and choice
// resolutions, outbound unlock events pushed as JSON frames. One connection
// goroutine per session serializes all engine access.
type Server struct {
	sessions *session.Manager
}

// New creates a server over a session manager.
func New(sessions *session.Manager) *Server {
	return &Server{sessions: sessions}
}

// Routes registers the websocket endpoint on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

// #endregion server

// #region handler

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade: %v", err)
		return
	}
	defer conn.Close()

	send := func(msg outboundMessage) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[WS] write session=%s: %v", sess.ID, err)
		}
	}

	// Unlock events fire synchronously inside handleMessage below, on this
	// goroutine, so writing straight to the connection is safe.
	sess.Mu.Lock()
	unsubscribe := sess.Engine.Subscribe(func(ev engine.Event) {
		send(outboundMessage{Type: "unlock", Payload: ev})
	})
	sess.Mu.Unlock()
	defer func() {
		sess.Mu.Lock()
		unsubscribe()
		sess.Mu.Unlock()
	}()

	// Initial state so a reconnecting client can catch up.
	sess.Mu.Lock()
	send(outboundMessage{Type: "state", Payload: statePayload{
		SessionID: sess.ID,
		Unlocked:  sess.Engine.UnlockedNodes(),
	}})
	sess.Mu.Unlock()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read session=%s: %v", sess.ID, err)
			}
			return
		}
		s.handleMessage(sess, msg, send)
	}
}

func (s *Server) handleMessage(sess *session.Session, msg inboundMessage, send func(outboundMessage)) {
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	switch msg.Type {
	case "mutate":
		var op signal.MutationOp
		if err := json.Unmarshal(msg.Payload, &op); err != nil {
			send(outboundMessage{Type: "error", Payload: "malformed mutate payload"})
			return
		}
		sess.Store.Apply(op)

	case "choices":
		var p choicesPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			send(outboundMessage{Type: "error", Payload: "malformed choices payload"})
			return
		}
		options, err := sess.Resolver.PresentChoices(p.StoryID)
		if err != nil {
			send(outboundMessage{Type: "error", Payload: err.Error()})
			return
		}
		send(outboundMessage{Type: "choices", Payload: options})

	case "resolve":
		var p resolvePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			send(outboundMessage{Type: "error", Payload: "malformed resolve payload"})
			return
		}
		if err := sess.Resolver.Resolve(p.StoryID, p.OptionID); err != nil {
			send(outboundMessage{Type: "error", Payload: err.Error()})
			return
		}
		send(outboundMessage{Type: "resolved", Payload: resolvePayload{StoryID: p.StoryID, OptionID: p.OptionID}})

	case "state":
		send(outboundMessage{Type: "state", Payload: statePayload{
			SessionID: sess.ID,
			Unlocked:  sess.Engine.UnlockedNodes(),
		}})

	default:
		send(outboundMessage{Type: "error", Payload: "unknown message type"})
	}
}

// #endregion handler
