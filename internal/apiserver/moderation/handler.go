// Package moderation 商品审核 - HTTP 处理
//
// 从 JWT 得到操作者，转换为显式 Actor 交给审核服务；
// 领域错误在 writeServiceError 中统一映射为状态码。
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"automarket/internal/apiserver/auth"
	mod "automarket/internal/moderation"
	"automarket/internal/shared/model"
	"automarket/pkg/logging"
)

// Service 审核服务接口
type Service interface {
	Handle(ctx context.Context, actor mod.Actor, req mod.Request) (*model.Product, error)
	History(ctx context.Context, actor mod.Actor, productID int64, limit int) ([]*model.ModerationEvent, error)
	Queue(ctx context.Context, actor mod.Actor, limit, offset int) ([]*model.Product, error)
}

// Handler 审核 HTTP 处理器
type Handler struct {
	svc    Service
	logger *logging.Logger
}

// NewHandler 创建审核处理器
func NewHandler(svc Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes 注册审核路由
//
//   - PUT /api/v1/products/{id}/submit
//   - PUT /api/v1/products/{id}/approve
//   - PUT /api/v1/products/{id}/reject     body: {"reason": "..."}
//   - PUT /api/v1/products/{id}/unpublish  body: {"reason": "..."}
//   - PUT /api/v1/products/{id}/resubmit
//   - GET /api/v1/products/{id}/history
//   - GET /api/v1/admin/moderation/queue
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, action := range mod.Actions {
		mux.HandleFunc("PUT /api/v1/products/{id}/"+string(action), h.Transition(action))
	}
	mux.HandleFunc("GET /api/v1/products/{id}/history", h.History)
	mux.HandleFunc("GET /api/v1/admin/moderation/queue", h.Queue)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

// ReasonBody 驳回/下架请求体
type ReasonBody struct {
	Reason string `json:"reason"`
}

// HistoryResponse 审核历史响应
type HistoryResponse struct {
	Events []*model.ModerationEvent `json:"events"`
	Count  int                      `json:"count"`
}

// QueueResponse 待审核队列响应
type QueueResponse struct {
	Products []*model.Product `json:"products"`
	Count    int              `json:"count"`
}

// ============================================================================
// Handlers
// ============================================================================

// Transition 返回执行指定审核动作的处理函数
func (h *Handler) Transition(action model.ModerationAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		var body ReasonBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req, err := mod.NewRequest(action, id, body.Reason)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}

		product, err := h.svc.Handle(r.Context(), auth.ActorFrom(r.Context()), req)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

// History 商品审核历史
// GET /api/v1/products/{id}/history?limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.svc.History(r.Context(), auth.ActorFrom(r.Context()), id, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*model.ModerationEvent{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Events: events, Count: len(events)})
}

// Queue 待审核队列（按进入队列时间先后）
// GET /api/v1/admin/moderation/queue?limit=&offset=
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	products, err := h.svc.Queue(r.Context(), auth.ActorFrom(r.Context()), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []*model.Product{}
	}
	writeJSON(w, http.StatusOK, QueueResponse{Products: products, Count: len(products)})
}

// writeServiceError 领域错误 → HTTP 状态码
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *mod.ValidationError
		terr *mod.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, mod.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mod.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, mod.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.As(err, &terr):
		// 下架一个不在 approved 状态的商品属于请求错误
		code := http.StatusConflict
		if terr.Action == model.ModerationActionUnpublish {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, map[string]string{
			"error":          terr.Error(),
			"current_status": string(terr.Current),
		})
	default:
		h.logger.Errorw("moderation request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
