package server

import (
	"net/http"
	"time"

	"automarket/internal/apiserver/auth"
	moderationapi "automarket/internal/apiserver/moderation"
	"automarket/internal/apiserver/product"
	"automarket/internal/apiserver/user"
)

// Router 返回配置好的 HTTP 路由
//
// 健康检查与指标:
//   - GET /health
//   - GET /metrics
//
// 认证 (auth 包):
//   - POST /api/v1/auth/register | login | refresh
//   - GET  /api/v1/auth/me
//   - PUT  /api/v1/auth/password
//
// 商品 (product 包):
//   - GET/POST        /api/v1/products
//   - GET/PUT/DELETE  /api/v1/products/{id}
//   - PUT             /api/v1/products/{id}/featured
//   - GET/PUT         /api/v1/products/{id}/image
//
// 审核 (moderation 包):
//   - PUT /api/v1/products/{id}/submit | approve | reject | unpublish | resubmit
//   - GET /api/v1/products/{id}/history
//   - GET /api/v1/admin/moderation/queue
//
// 用户管理 (user 包):
//   - GET /api/v1/admin/users
//   - PUT /api/v1/admin/users/{id}/block | unblock
//
// WebSocket:
//   - GET /ws/moderation
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.deps.Metrics.Handler())

	auth.NewHandler(h.deps.Store, h.deps.Auth, h.logger.Named("auth")).RegisterRoutes(mux)
	product.NewHandler(h.deps.Store, h.deps.Images, h.deps.MaxUploadBytes, h.logger.Named("product")).RegisterRoutes(mux)
	moderationapi.NewHandler(h.deps.Moderation, h.logger.Named("moderation")).RegisterRoutes(mux)
	user.NewHandler(h.deps.Store, h.logger.Named("user")).RegisterRoutes(mux)

	// 指标中间件在认证内侧，只统计通过认证的请求
	apiHandler := h.deps.Metrics.MetricsMiddleware(mux)
	authedHandler := auth.Middleware(h.deps.Auth, h.logger.Named("auth"))(apiHandler)
	corsHandler := corsMiddleware(h.accessLog(authedHandler))

	// WebSocket 不经过 metrics 与认证中间件，自行校验令牌
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/moderation", h.hub.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// accessLog 请求日志
func (h *Handler) accessLog(next http.Handler) http.Handler {
	httpLogger := h.logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		httpLogger.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), r.RemoteAddr)
	})
}
