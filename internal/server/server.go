package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/ChessSnap-PDF/internal/msgcat"
	"github.com/park285/ChessSnap-PDF/internal/obslog"
	"github.com/park285/ChessSnap-PDF/internal/service/scan"
)

type Config struct {
	ListenAddr     string
	EventsAddr     string
	MaxUploadBytes int
}

// Server is the fasthttp front of the scan service, plus an optional
// net/http listener carrying the websocket event stream. The websocket
// upgrade needs net/http, so /events lives on its own listener.
type Server struct {
	cfg Config
	svc *scan.Service
	cat *msgcat.Catalog
	hub *Hub
	log *zap.Logger

	httpSrv   *fasthttp.Server
	eventsSrv *http.Server
}

func New(cfg Config, svc *scan.Service, cat *msgcat.Catalog, hub *Hub) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("scan service is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("message catalog is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}

	s := &Server{
		cfg: cfg,
		svc: svc,
		cat: cat,
		hub: hub,
		log: obslog.L().Named("server"),
	}

	s.httpSrv = &fasthttp.Server{
		Handler: s.route,
		Name:    "chesssnap",
		// Multipart overhead on top of the PDF cap.
		MaxRequestBodySize: cfg.MaxUploadBytes + 1<<20,
		ReadTimeout:        2 * time.Minute,
		WriteTimeout:       2 * time.Minute,
	}

	if cfg.EventsAddr != "" && hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/events", hub.Handler())
		s.eventsSrv = &http.Server{
			Addr:              cfg.EventsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Handler exposes the request router for in-process tests.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.route
}

// ListenAndServe blocks serving the API; the events listener, when
// configured, runs on its own goroutine.
func (s *Server) ListenAndServe() error {
	if s.eventsSrv != nil {
		go func() {
			s.log.Info("events listener starting", zap.String("addr", s.cfg.EventsAddr))
			if err := s.eventsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("events listener failed", zap.Error(err))
			}
		}()
	}
	s.log.Info("api listener starting", zap.String("addr", s.cfg.ListenAddr))
	return s.httpSrv.ListenAndServe(s.cfg.ListenAddr)
}

// Serve serves the API on a caller-provided listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpSrv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.eventsSrv != nil {
		_ = s.eventsSrv.Shutdown(ctx)
	}
	return s.httpSrv.ShutdownWithContext(ctx)
}
