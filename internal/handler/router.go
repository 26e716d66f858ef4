package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/makersgallery/internal/credential"
	"github.com/hitoshi/makersgallery/internal/maker"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Backend           credential.Backend
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	SessionCookie     middleware.SessionCookieConfig

	// ページ
	Pages          *PageFactory
	Directory      *maker.Directory
	Contact        ContactSubmitter
	WebRoot        string
	ProtectedPages []string

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → CSRF
//
// /health と /metrics はセッション解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.Pages, deps.SessionCookie)
	makersHandler := NewMakersHandler(deps.Directory)
	favHandler := NewFavoritesHandler(deps.Pages, deps.Directory)
	contactHandler := NewContactHandler(deps.Contact)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Backend))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Get("/status", authHandler.Status)
		})
		r.Get("/profile", authHandler.Profile)

		r.Get("/api/makers", makersHandler.List)

		r.Route("/api/favorites", func(r chi.Router) {
			r.Get("/", favHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", favHandler.Get)
				r.Put("/", favHandler.Save)
				r.Delete("/", favHandler.Unsave)
				r.Post("/toggle", favHandler.Toggle)
			})
		})

		r.Post("/api/contact", contactHandler.Submit)

		if deps.WebRoot != "" {
			r.Handle("/*", NewStaticHandler(deps.WebRoot, deps.ProtectedPages, deps.Pages))
		}
	})

	return r
}
