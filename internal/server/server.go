// Package server serves the live monitor: a WebSocket feed of generator
// events and a JSON status endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/scheduler"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
)

// CommandHandler handles frames received from clients.
type CommandHandler interface {
	Handle(msg Message, hub *Hub)
}

// Options carries what the server reads from the rest of the generator.
type Options struct {
	Port           string
	AllowedOrigins []string
	State          *core.State
	Scripts        func() ([]string, error)
	Schedules      func() map[cron.EntryID]scheduler.ScheduleEntry
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	handler    CommandHandler
	opts       Options
	log        *logger.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates a server and starts its hub.
func NewServer(opts Options, log *logger.Logger) *Server {
	hub := NewHub(log)
	go hub.Run()

	s := &Server{
		Hub:  hub,
		opts: opts,
		log:  log,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.opts.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.opts.AllowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			s.log.Warnw("[WS] Connection blocked", "origin", origin)
			return false
		},
	}

	s.httpServer = &http.Server{Addr: ":" + opts.Port, Handler: s.Handler()}

	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// SetHandler installs the handler for client commands.
func (s *Server) SetHandler(h CommandHandler) {
	s.handler = h
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) snapshot() core.State {
	if s.opts.State == nil {
		return core.State{}
	}
	return s.opts.State.Clone()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&state); err != nil {
		s.log.Warnw("[HTTP] Encoding status failed", "err", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("[WS] Upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	state := s.snapshot()
	_ = conn.WriteJSON(NewMessage(MsgLinkStatus, core.LinkPayload{Connected: state.LinkUp, Device: state.Device}))
	_ = conn.WriteJSON(NewMessage(MsgStats, &state))

	if s.opts.Scripts != nil {
		if scripts, err := s.opts.Scripts(); err == nil {
			_ = conn.WriteJSON(NewMessage(MsgScriptList, scripts))
		}
	}
	if s.opts.Schedules != nil {
		_ = conn.WriteJSON(NewMessage(MsgScheduleList, s.opts.Schedules()))
	}

	s.Hub.register <- conn

	defer func() {
		s.Hub.unregister <- conn
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if s.handler != nil {
			s.handler.Handle(Message{Raw: msgBytes}, s.Hub)
		}
	}
}
