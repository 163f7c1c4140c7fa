package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luminaview/lumina/internal/auth"
	"github.com/luminaview/lumina/internal/collection"
	"github.com/luminaview/lumina/internal/config"
	"github.com/luminaview/lumina/internal/plugins"
	"github.com/luminaview/lumina/internal/scanner"
	"github.com/luminaview/lumina/pkg/sdk"
)

type Server struct {
	cfg  *config.Config
	log  *zap.Logger
	bus  sdk.Bus
	reg  *plugins.Registry
	scan *scanner.Scanner
	r    *chi.Mux
	jwt  *auth.Validator
}

func New(cfg *config.Config, log *zap.Logger, bus sdk.Bus, reg *plugins.Registry, scan *scanner.Scanner) *Server {
	v := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))
	s := &Server{cfg: cfg, log: log, bus: bus, reg: reg, scan: scan, r: r, jwt: v}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler      { return s.r }
func (s *Server) Reload(cfg *config.Config) { s.cfg = cfg }

type pluginInfo struct {
	sdk.Descriptor
	State string `json:"state"`
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.r.Get("/v1/plugins", s.auth(func(w http.ResponseWriter, r *http.Request) {
		infos := make([]pluginInfo, 0)
		for _, id := range s.reg.IDs() {
			desc, err := s.reg.Descriptor(id)
			if err != nil {
				continue
			}
			st, err := s.reg.State(id)
			if err != nil {
				continue
			}
			infos = append(infos, pluginInfo{Descriptor: desc, State: st.String()})
		}
		_ = json.NewEncoder(w).Encode(infos)
	}))

	s.r.Post("/v1/plugins/{id}/activate", s.auth(func(w http.ResponseWriter, r *http.Request) {
		if err := s.reg.Activate(chi.URLParam(r, "id")); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	s.r.Post("/v1/plugins/{id}/deactivate", s.auth(func(w http.ResponseWriter, r *http.Request) {
		if err := s.reg.Deactivate(chi.URLParam(r, "id")); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	s.r.Get("/v1/plugins/{id}/config", s.auth(func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.reg.Config(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(cfg)
	}))

	s.r.Put("/v1/plugins/{id}/config", s.auth(func(w http.ResponseWriter, r *http.Request) {
		var cfg map[string]any
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if err := s.reg.UpdateConfig(chi.URLParam(r, "id"), cfg); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	s.r.Get("/v1/plugins/{id}/frontend", s.auth(func(w http.ResponseWriter, r *http.Request) {
		code, err := s.reg.FrontendCode(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(code))
	}))

	s.r.Post("/v1/plugins/{id}/call/{handler}", s.auth(func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				http.Error(w, "invalid json body", http.StatusBadRequest)
				return
			}
		}
		result, err := s.reg.CallHandler(chi.URLParam(r, "id"), chi.URLParam(r, "handler"), args)
		if err != nil {
			s.writeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}))

	s.r.Post("/v1/resources/resolve", s.auth(func(w http.ResponseWriter, r *http.Request) {
		var cfg scanner.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		result, err := s.scan.Resolve(cfg)
		if err != nil {
			s.writeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}))

	s.r.Post("/v1/images/load", s.auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		c := collection.FromPaths([]string{req.Path}, s.log)
		if c.IsEmpty() {
			http.Error(w, "image not found: "+req.Path, http.StatusNotFound)
			return
		}
		img, err := c.LoadAt(0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(img)
	}))

	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.r.Get("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		// no auth on the WS; it binds to loopback
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("ws upgrade failed", zap.Error(err))
			return
		}

		// bridge the bus into a bounded channel; a slow client drops events
		// rather than stalling publishers
		ch := make(chan sdk.EventPayload, 64)
		unsubscribe := s.bus.SubscribeAll(func(ev sdk.EventPayload) error {
			select {
			case ch <- ev:
			default:
				s.log.Debug("ws client too slow, dropping event", zap.String("event", ev.Type))
			}
			return nil
		})
		done := make(chan struct{})

		go func() {
			defer func() {
				unsubscribe()
				_ = conn.Close()
			}()
			for {
				select {
				case ev := <-ch:
					if err := conn.WriteJSON(ev); err != nil {
						s.log.Debug("ws write error", zap.Error(err))
						return
					}
				case <-done:
					return
				}
			}
		}()

		// minimal read loop to notice the client going away
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, plugins.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, plugins.ErrFeatureDisabled):
		code = http.StatusForbidden
	case errors.Is(err, plugins.ErrAlreadyExists):
		code = http.StatusConflict
	}
	http.Error(w, err.Error(), code)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.jwt.Enabled() {
			next(w, r)
			return
		}
		tok := r.Header.Get("Authorization")
		if tok == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if len(tok) > 7 && tok[:7] == "Bearer " {
			tok = tok[7:]
		}
		if _, err := s.jwt.Verify(tok); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
