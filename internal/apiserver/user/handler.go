// Package user 用户管理（管理员）- HTTP 处理
package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"automarket/internal/apiserver/auth"
	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
	"automarket/pkg/logging"
)

// Store 用户存储接口
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error
	ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
}

// Handler 用户管理处理器
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler 创建用户管理处理器
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes 注册路由（全部仅管理员）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/users", auth.AdminOnly(h.List))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/block", auth.AdminOnly(h.setStatus(model.UserStatusBlocked)))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/unblock", auth.AdminOnly(h.setStatus(model.UserStatusActive)))
}

// List 用户列表
// GET /api/v1/admin/users?role=&status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.UserFilter{
		Role:   model.UserRole(q.Get("role")),
		Status: model.UserStatus(q.Get("status")),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if filter.Status != "" && filter.Status != model.UserStatusActive && filter.Status != model.UserStatusBlocked {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	users, err := h.store.ListUsers(r.Context(), filter)
	if err != nil {
		h.logger.Errorw("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

// setStatus 封禁/解封
func (h *Handler) setStatus(status model.UserStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		self := auth.GetAuthUser(r.Context())
		if status == model.UserStatusBlocked && self != nil && self.ID == id {
			writeError(w, http.StatusBadRequest, "admins cannot block themselves")
			return
		}

		if err := h.store.UpdateUserStatus(r.Context(), id, status); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			h.logger.Errorw("update user status failed", "user_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update user")
			return
		}

		u, err := h.store.GetUserByID(r.Context(), id)
		if err != nil || u == nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Infow("user status changed", "user_id", id, "status", status, "admin_id", self.ID)
		writeJSON(w, http.StatusOK, u)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
