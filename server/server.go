// Package server exposes the player over HTTP and streams its notifications
// and output commands to browsers over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"PlayDeck/core/player"
	"PlayDeck/core/track"
	"PlayDeck/logger"
	"PlayDeck/metrics"
	"PlayDeck/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 播放引擎的HTTP服务
type Server struct {
	engine       *player.Engine
	hub          *Hub
	remote       *RemoteOutput
	materializer track.Materializer
	upgrader     websocket.Upgrader
	router       *mux.Router
}

// New builds the server and starts forwarding engine notifications to hub.
// The hub must not be running yet.
func New(engine *player.Engine, hub *Hub, remote *RemoteOutput, m track.Materializer) *Server {
	s := &Server{
		engine:       engine,
		hub:          hub,
		remote:       remote,
		materializer: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	engine.Subscribe(func(ev model.Event) {
		if err := hub.BroadcastMessage(MsgTypeEvent, ev); err != nil {
			logger.Warn("failed to encode event", logger.ErrorField(err))
		}
	})
	hub.OnJoin(s.catchUp)

	s.router = s.routes()
	return s
}

func (s *Server) catchUp() [][]byte {
	var msgs [][]byte
	for _, cmd := range s.remote.Replay() {
		if msg, err := newMessage(MsgTypeCommand, cmd); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, metricsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.StateHandler).Methods(http.MethodGet)
	api.HandleFunc("/play", s.transport(s.engine.Play)).Methods(http.MethodPost)
	api.HandleFunc("/pause", s.transport(s.engine.Pause)).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.transport(s.engine.Stop)).Methods(http.MethodPost)
	api.HandleFunc("/next", s.transport(s.engine.Next)).Methods(http.MethodPost)
	api.HandleFunc("/previous", s.transport(s.engine.Previous)).Methods(http.MethodPost)
	api.HandleFunc("/repeat", s.RepeatHandler).Methods(http.MethodPost)
	api.HandleFunc("/shuffle", s.ShuffleHandler).Methods(http.MethodPost)
	api.HandleFunc("/seek", s.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/volume", s.VolumeHandler).Methods(http.MethodPost)

	api.HandleFunc("/tracks", s.TracksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.UploadTracksHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", s.RemoveTrackHandler).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id}/play", s.PlayTrackHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}/move", s.MoveTrackHandler).Methods(http.MethodPost)

	api.HandleFunc("/playlist", s.ExportPlaylistHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlist", s.ImportPlaylistHandler).Methods(http.MethodPost)

	router.HandleFunc("/ws", s.WebSocketHandler)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	// 预检请求，由corsMiddleware处理
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	return router
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket升级需要原始的ResponseWriter
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}
