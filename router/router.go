package router

import (
	"database/sql"
	"net/http"

	"fragmentone/internal/auth"
	fragmentHandler "fragmentone/internal/fragment"
	"fragmentone/internal/fragment/repository"
	"fragmentone/internal/fragment/service"
	"fragmentone/middleware"
	"fragmentone/pkg/metrics"
	"fragmentone/socket"
)

type Deps struct {
	DB             *sql.DB
	Hub            *socket.Hub
	Issuer         *auth.Issuer
	Metrics        *metrics.Collector
	AllowedOrigins []string
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()
	authed := middleware.AuthMiddleware(d.Issuer)
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, middleware.RequestLogger(d.Metrics, name)(h))
	}

	// WebSocket feed
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(d.Hub, w, r, middleware.UserID(r.Context()))
	})
	route("GET /ws", "/ws", authed(wsHandler))

	// REST API
	fragmentRepo := repository.NewFragmentRepository(d.DB)
	fragmentService := service.NewFragmentService(fragmentRepo, d.Hub, d.Metrics)
	h := fragmentHandler.NewFragmentHandler(fragmentService)

	route("POST /api/auth/anonymous", "/api/auth/anonymous", auth.SignInAnonymously(d.Issuer))
	route("POST /api/auth/refresh", "/api/auth/refresh", auth.RefreshIdentity(d.Issuer))
	route("POST /api/fragments", "/api/fragments", authed(http.HandlerFunc(h.CreateFragment)))
	route("GET /api/fragments", "/api/fragments", authed(http.HandlerFunc(h.ListFragments)))
	route("DELETE /api/fragments", "/api/fragments", authed(http.HandlerFunc(h.DeleteFragments)))
	route("GET /api/fragments/mine", "/api/fragments/mine", authed(http.HandlerFunc(h.ListMyFragments)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := fragmentRepo.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())

	return middleware.CORSMiddleware(d.AllowedOrigins)(mux)
}
