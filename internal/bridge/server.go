// Package bridge exposes the window manager's IPC socket over HTTP and
// WebSocket.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bryanchriswhite/wmipc/internal/config"
	"github.com/bryanchriswhite/wmipc/internal/ipc"
	"github.com/bryanchriswhite/wmipc/internal/jsonstream"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReplyTypeHeader carries the name of the reply's message type.
const ReplyTypeHeader = "X-Wmipc-Reply-Type"

// Event is the WebSocket frame sent for each window manager event.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Server represents the HTTP bridge
type Server struct {
	router     *mux.Router
	socketPath string
	allowed    map[uint32]bool
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a bridge to the window manager listening on socketPath.
// Unknown names in cfg.AllowedTypes are an error.
func NewServer(socketPath string, cfg config.BridgeConfig) (*Server, error) {
	s := &Server{
		router:     mux.NewRouter(),
		socketPath: socketPath,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	if len(cfg.AllowedTypes) > 0 {
		s.allowed = make(map[uint32]bool, len(cfg.AllowedTypes))
		for _, name := range cfg.AllowedTypes {
			t, err := ipc.ParseMessageType(name)
			if err != nil {
				return nil, fmt.Errorf("invalid bridge.allowed_types entry: %w", err)
			}
			s.allowed[t] = true
		}
	}

	RegisterMetrics()
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.recordMetrics)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/messages/{type}", s.handleMessage).Methods("POST")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the router wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithComponent("bridge").Info().
		Str("addr", addr).
		Str("socket", s.socketPath).
		Msg("Starting bridge")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", ReplyTypeHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics. It keeps
// Hijack working so WebSocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("bridge: response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"socket": s.socketPath,
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("bridge")

	t, err := ipc.ParseMessageType(mux.Vars(r)["type"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if t == ipc.Subscribe || ipc.IsEvent(t) {
		writeError(w, http.StatusBadRequest, errors.New("subscriptions are served at /api/events"))
		return
	}
	if s.allowed != nil && !s.allowed[t] {
		writeError(w, http.StatusForbidden, fmt.Errorf("message type %s is not allowed", ipc.MessageTypeName(t)))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, int64(ipc.DefaultMaxPayload)+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(payload) > int(ipc.DefaultMaxPayload) {
		writeError(w, http.StatusRequestEntityTooLarge, ipc.ErrPayloadTooLarge)
		return
	}

	client, err := ipc.DialClient(s.socketPath)
	if err != nil {
		RecordIPCError("connect")
		log.Error().Err(err).Msg("Failed to connect to window manager")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	defer client.Close()

	RecordIPCMessage("sent", ipc.MessageTypeName(t), len(payload))
	reply, err := client.Request(t, payload)
	if err != nil {
		RecordIPCError("request")
		log.Error().
			Err(err).
			Str("type", ipc.MessageTypeName(t)).
			Msg("IPC request failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	RecordIPCMessage("received", ipc.MessageTypeName(reply.Type), len(reply.Payload))

	body := reply.Payload
	if r.URL.Query().Get("pretty") != "" {
		if pretty, err := jsonstream.Reformat(reply.Payload); err == nil {
			body = pretty
		} else {
			log.Warn().Err(err).Msg("Reply is not valid JSON, sending it unformatted")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(ReplyTypeHeader, ipc.MessageTypeName(reply.Type))
	w.Write(body)
}

// parseEventTypes splits a comma-separated list and checks every name.
func parseEventTypes(raw string) ([]string, error) {
	known := make(map[string]bool)
	for _, name := range ipc.EventNames() {
		known[name] = true
	}

	var events []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		events = append(events, name)
	}
	if len(events) == 0 {
		return nil, errors.New("no event types requested")
	}
	return events, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("bridge")

	events, err := parseEventTypes(r.URL.Query().Get("types"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.allowed != nil && !s.allowed[ipc.Subscribe] {
		writeError(w, http.StatusForbidden, errors.New("subscriptions are not allowed"))
		return
	}

	client, err := ipc.DialClient(s.socketPath)
	if err != nil {
		RecordIPCError("connect")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	defer client.Close()

	if err := client.Subscribe(events...); err != nil {
		RecordIPCError("subscribe")
		writeError(w, http.StatusBadGateway, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	log.Debug().Strs("events", events).Msg("Event stream opened")

	// Closing the IPC connection unblocks NextEvent once the peer goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				client.Close()
				return
			}
		}
	}()

	for {
		msg, err := client.NextEvent()
		if err != nil {
			log.Debug().Err(err).Msg("Event stream closed")
			return
		}
		RecordIPCMessage("received", ipc.EventName(msg.Type), len(msg.Payload))

		ev := Event{Type: ipc.EventName(msg.Type), Payload: msg.Payload}
		if !json.Valid(msg.Payload) {
			quoted, _ := json.Marshal(string(msg.Payload))
			ev.Payload = quoted
		}
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
	}
}
