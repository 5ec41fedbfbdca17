package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/sessions"
	"github.com/timzifer/microdash/runtime/widgets"
)

// Core is the dashboard surface the transport feeds. Connect, Disconnect and
// Submit are safe to call from connection goroutines.
type Core interface {
	Connect(t sessions.Transport) (int, error)
	Disconnect(id int)
	Submit(session int, widget widgets.ID, payload json.RawMessage)
	MalformedFrame(session int, err error)
}

// Server exposes the dashboard page, the websocket stream and the metrics
// endpoint on a single listener.
type Server struct {
	core     Core
	cfg      config.ServerConfig
	title    string
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer creates the HTTP surface for a dashboard core.
func NewServer(core Core, cfg config.ServerConfig, title string, logger zerolog.Logger) *Server {
	s := &Server{
		core:   core,
		cfg:    cfg,
		title:  title,
		logger: logger.With().Str("component", "transport").Logger(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Routes builds the request mux: the page shell on "/", the patch stream on
// "/ws" and Prometheus metrics on "/metrics".
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Listen
	if addr == "" {
		addr = ":8080"
	}
	s.srv = &http.Server{Addr: addr, Handler: s.Routes()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("dashboard listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(renderPage(s.title)))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	transport := newWSConn(conn)
	id, err := s.core.Connect(transport)
	if err != nil {
		s.logger.Warn().Err(err).Msg("client rejected")
		return
	}
	s.logger.Info().Int("session", id).Str("remote", r.RemoteAddr).Msg("client connected")

	go s.readLoop(id, conn)
}

// readLoop decodes inbound command frames until the connection dies.
// Malformed frames are dropped and counted; the connection stays up.
func (s *Server) readLoop(id int, conn *websocket.Conn) {
	defer func() {
		s.core.Disconnect(id)
		s.logger.Info().Int("session", id).Msg("client disconnected")
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame CommandFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.core.MalformedFrame(id, err)
			continue
		}
		if frame.Widget == nil || len(frame.Value) == 0 {
			s.core.MalformedFrame(id, errors.New("frame missing widget or value"))
			continue
		}
		s.core.Submit(id, widgets.ID(*frame.Widget), frame.Value)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") || strings.HasPrefix(host, "[::1]") {
		return true
	}
	return false
}
