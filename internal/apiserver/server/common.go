// Package server HTTP 服务组装
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由与中间件
//   - metrics.go: Prometheus 指标
//   - moderation_ws.go: 审核事件 WebSocket 网关
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"automarket/internal/apiserver/auth"
	"automarket/internal/apiserver/product"
	"automarket/internal/moderation"
	"automarket/internal/shared/eventbus"
	"automarket/internal/shared/storage"
	"automarket/pkg/logging"
)

// Deps Handler 依赖
type Deps struct {
	Store      storage.PersistentStore
	Moderation *moderation.Service
	Events     eventbus.ModerationSubscriber // 可为 nil
	Images     product.ImageStore            // 可为 nil，图片接口返回 503
	Auth       auth.Config
	Metrics    *Metrics
	Logger     *logging.Logger

	MaxUploadBytes int64
}

// Handler API 处理器
//
// 持有各领域处理器共享的依赖，并负责 WebSocket 网关的生命周期。
type Handler struct {
	deps   Deps
	hub    *ModerationHub
	logger *logging.Logger
}

// NewHandler 创建 Handler 实例
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics("automarket", nil)
	}
	return &Handler{
		deps:   deps,
		hub:    NewModerationHub(deps.Events, deps.Auth, deps.Metrics, deps.Logger.Named("ws")),
		logger: deps.Logger,
	}
}

// Hub 返回审核事件网关
func (h *Handler) Hub() *ModerationHub {
	return h.hub
}

// StartHub 在后台运行 WebSocket 网关，直到 ctx 取消
func (h *Handler) StartHub(ctx context.Context) {
	go h.hub.Run(ctx)
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
