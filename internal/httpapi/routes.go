package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/hub"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/ws"
)

type Deps struct {
	Hub         *hub.Hub
	Leaderboard LeaderboardSource
	PublicURL   string
	Logger      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/lobbies", CreateLobby(d.Hub, d.PublicURL, d.Logger))
	r.Get("/lobbies/{code}", GetLobby(d.Hub))
	r.Get("/lobbies/{code}/qr", LobbyQR(d.Hub, d.PublicURL))
	r.Get("/leaderboard", Leaderboard(d.Leaderboard))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Logger))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
