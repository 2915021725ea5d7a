// Package handler はボットに付随するHTTPエンドポイントを提供する。
// ボット自体はMTProtoで動くため、HTTPは監視とWebAppページの配信だけを担う。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
	RateLimiter   *middleware.RateLimiter
	Logger        *slog.Logger

	// TrustProxy が true なら X-Forwarded-For / X-Real-IP を接続元として扱う。
	TrustProxy bool
}

// NewRouter はHTTPエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → (RealIP) → Logging → SecurityHeaders
//
// /webapp/* にはさらに RateLimit → WebAppHeaders を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, middleware.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, middleware.CodeMethodInvalid, "method not allowed")
	})

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker, 0, deps.Logger))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/webapp", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewWebAppHeadersMiddleware())
		r.Get("/time", TimePickerHandler)
	})

	return r
}
