// Package wsserver is the transport surface of the orchestrator: a chi
// router exposing the WebSocket ingress, the worker callback endpoint,
// health and metrics, with JSON-framed WS messages fanned out to the
// session registry, agent loop and streaming bus.
package wsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kabsikabs/pinnokio/internal/agentloop"
	"github.com/kabsikabs/pinnokio/internal/authbootstrap"
	"github.com/kabsikabs/pinnokio/internal/callbackresumer"
	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/sessionregistry"
	"github.com/kabsikabs/pinnokio/internal/streambus"
)

// turnTimeout bounds one user turn end to end, including every model
// call and worker dispatch it performs.
const turnTimeout = 5 * time.Minute

// Server wires the session registry, agent loop, streaming bus and
// callback resumer to the HTTP/WS transport.
type Server struct {
	hub       *streambus.Hub
	upgrader  websocket.Upgrader
	bootstrap *authbootstrap.Bootstrap
	oracle    *connmode.Oracle
	registry  *sessionregistry.Registry
	loop      *agentloop.Loop
	bus       *streambus.Bus
	resumer   *callbackresumer.Resumer
	logger    *slog.Logger
}

func New(
	hub *streambus.Hub,
	bootstrap *authbootstrap.Bootstrap,
	oracle *connmode.Oracle,
	registry *sessionregistry.Registry,
	loop *agentloop.Loop,
	bus *streambus.Bus,
	resumer *callbackresumer.Resumer,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:       hub,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: func(*http.Request) bool { return true }},
		bootstrap: bootstrap,
		oracle:    oracle,
		registry:  registry,
		loop:      loop,
		bus:       bus,
		resumer:   resumer,
		logger:    logger,
	}
}

// Routes builds the chi router: /ws, /lpt/callback, /healthz, /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/ws", s.handleWS)
	r.Post("/lpt/callback", s.resumer.HTTPHandler())
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// inboundMessage is the envelope every WS frame arrives in; Type selects
// the handler for Payload.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	var client *streambus.Client
	defer func() {
		if client != nil {
			s.hub.Unregister(client)
		} else {
			_ = conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("malformed ws frame, ignoring", "error", err)
			continue
		}

		switch msg.Type {
		case "auth.firebase_token":
			client = s.handleAuth(r.Context(), conn, msg.Payload, client)
		case "chat.user_message":
			// Off the read loop: turns on different threads run in
			// parallel, turns on the same thread serialize on the
			// per-thread mutex. The turn itself outlives the socket:
			// a user who disconnects mid-turn still gets the reply
			// persisted for replay.
			go s.handleChatMessage(context.Background(), msg.Payload)
		case "dashboard.orchestrate_init":
			go s.handleOrchestrateInit(context.Background(), msg.Payload)
		case "dashboard.company_change":
			go s.handleCompanyChange(context.Background(), msg.Payload)
		case "dashboard.refresh":
			go s.handleDashboardRefresh(context.Background(), msg.Payload)
		default:
			s.logger.Warn("unknown ws message type", "type", msg.Type)
		}
	}
}

func (s *Server) handleAuth(ctx context.Context, conn *websocket.Conn, payload json.RawMessage, existing *streambus.Client) *streambus.Client {
	var req authbootstrap.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "auth.login_error", "error": "malformed payload"})
		return existing
	}

	result := s.bootstrap.Handle(ctx, req)
	if !result.Confirmed {
		_ = conn.WriteJSON(map[string]any{"type": "auth.login_error", "error": result.Error})
		return existing
	}

	_ = conn.WriteJSON(map[string]any{"type": "auth.session_confirmed"})
	_ = s.oracle.RecordHeartbeat(ctx, req.UID)

	if existing != nil {
		s.hub.Unregister(existing)
	}
	return s.hub.Register(req.UID, conn)
}

type chatMessage struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	ThreadKey string `json:"thread_key"`
	Content   string `json:"content"`
}

// handleChatMessage runs one user turn through the agent loop, streaming
// chunks when the user is UI-attached and persisting unconditionally.
func (s *Server) handleChatMessage(ctx context.Context, payload json.RawMessage) {
	var msg chatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed chat.user_message, ignoring", "error", err)
		return
	}

	_ = s.oracle.RecordHeartbeat(ctx, msg.UserID)

	session, err := s.registry.GetOrCreate(msg.UserID, msg.CompanyID)
	if err != nil {
		s.logger.Error("session creation failed", "error", err)
		return
	}

	lock := session.ThreadLock(msg.ThreadKey)
	lock.Lock()
	defer lock.Unlock()

	brain, _, err := s.registry.GetBrain(ctx, session, msg.ThreadKey)
	if err != nil {
		s.logger.Warn("context load failed, continuing with stale/empty context", "error", err)
	}

	if err := s.bus.PersistUserMessage(ctx, msg.CompanyID, msg.ThreadKey, msg.Content); err != nil {
		s.logger.Error("failed to persist user message", "error", err)
	}

	mode := s.oracle.Classify(ctx, msg.UserID)
	var onChunk func(string)
	messageID := ""
	if mode == connmode.ModeUI {
		if id, err := s.bus.StartAssistantMessage(ctx, msg.CompanyID, msg.UserID, msg.ThreadKey); err == nil {
			messageID = id
			accumulated := ""
			onChunk = func(delta string) {
				accumulated += delta
				_ = s.bus.AppendChunk(ctx, msg.CompanyID, msg.UserID, msg.ThreadKey, messageID, accumulated, delta)
			}
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	outcome := s.loop.Run(timeoutCtx, brain, msg.ThreadKey, msg.UserID, msg.CompanyID, msg.Content, onChunk)

	finalText := outcome.Conclusion
	if outcome.Status == agentloop.StatusErrorFatal {
		finalText = "Sorry, something went wrong handling your message."
	}

	if messageID != "" {
		if err := s.bus.CompleteAssistantMessage(ctx, msg.CompanyID, msg.UserID, msg.ThreadKey, messageID, finalText); err != nil {
			s.logger.Error("failed to complete assistant message", "error", err)
		}
		return
	}

	if outcome.Status == agentloop.StatusErrorFatal {
		_ = s.bus.PersistErrorMessage(ctx, msg.CompanyID, msg.UserID, msg.ThreadKey, finalText)
		return
	}
	_ = s.bus.PersistAssistantMessage(ctx, msg.CompanyID, msg.ThreadKey, finalText)
}

type dashboardMessage struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	ThreadKey string `json:"thread_key"`
}

// handleOrchestrateInit resolves the thread's business context and
// reports it as a phase_start / phase_complete pair.
func (s *Server) handleOrchestrateInit(ctx context.Context, payload json.RawMessage) {
	var msg dashboardMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed dashboard.orchestrate_init, ignoring", "error", err)
		return
	}

	_ = s.oracle.RecordHeartbeat(ctx, msg.UserID)
	s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_start", ThreadKey: msg.ThreadKey, Content: "context_loading"})

	bctx, err := s.registry.ResolveContext(ctx, msg.UserID, msg.CompanyID, msg.ThreadKey)
	if err != nil {
		s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_complete", ThreadKey: msg.ThreadKey, Status: "error", Content: "context_loading"})
		return
	}

	summary, _ := json.Marshal(map[string]any{
		"company_name": bctx.CompanyName,
		"mandate_path": bctx.MandatePath,
		"bank_erp":     bctx.BankERP,
		"dms_system":   bctx.DMSSystem,
	})
	s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_complete", ThreadKey: msg.ThreadKey, Status: "ok", Content: string(summary)})
}

// handleCompanyChange drops the thread's cached context and re-resolves
// it for the new company.
func (s *Server) handleCompanyChange(ctx context.Context, payload json.RawMessage) {
	var msg dashboardMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed dashboard.company_change, ignoring", "error", err)
		return
	}

	_ = s.oracle.RecordHeartbeat(ctx, msg.UserID)
	s.registry.InvalidateContext(msg.UserID, msg.CompanyID, msg.ThreadKey)

	s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_start", ThreadKey: msg.ThreadKey, Content: "company_change"})
	if _, err := s.registry.ResolveContext(ctx, msg.UserID, msg.CompanyID, msg.ThreadKey); err != nil {
		s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_complete", ThreadKey: msg.ThreadKey, Status: "error", Content: "company_change"})
		return
	}
	s.hub.Broadcast(msg.UserID, streambus.Event{Type: "phase_complete", ThreadKey: msg.ThreadKey, Status: "ok", Content: "company_change"})
}

// handleDashboardRefresh re-emits the current context as a loading
// progress event.
func (s *Server) handleDashboardRefresh(ctx context.Context, payload json.RawMessage) {
	var msg dashboardMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed dashboard.refresh, ignoring", "error", err)
		return
	}

	_ = s.oracle.RecordHeartbeat(ctx, msg.UserID)

	bctx, err := s.registry.ResolveContext(ctx, msg.UserID, msg.CompanyID, msg.ThreadKey)
	if err != nil {
		s.hub.Broadcast(msg.UserID, streambus.Event{Type: "data_loading_progress", ThreadKey: msg.ThreadKey, Status: "error"})
		return
	}

	summary, _ := json.Marshal(map[string]any{
		"company_name": bctx.CompanyName,
		"mandate_path": bctx.MandatePath,
		"bank_erp":     bctx.BankERP,
	})
	s.hub.Broadcast(msg.UserID, streambus.Event{Type: "data_loading_progress", ThreadKey: msg.ThreadKey, Status: "ok", Content: string(summary)})
}
