package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
	"automarket/internal/shared/validation"
	"automarket/pkg/logging"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store  UserStore
	cfg    Config
	logger *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(store UserStore, cfg Config, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{store: store, cfg: cfg, logger: logger}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("PUT /api/v1/auth/password", h.ChangePassword)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

// RegisterRequest 注册请求；供应商必须填写店铺名
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Name      string `json:"name" validate:"required,notblank,max=200"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"omitempty,oneof=customer vendor"`
	StoreName string `json:"store_name" validate:"required_if=Role vendor,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册（customer 或 vendor）
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role := model.UserRole(req.Role)
	if role == "" {
		role = model.UserRoleCustomer
	}
	user := &model.User{
		Email:  normalizeEmail(req.Email),
		Name:   strings.TrimSpace(req.Name),
		Role:   role,
		Status: model.UserStatusActive,
	}
	if role == model.UserRoleVendor {
		store := strings.TrimSpace(req.StoreName)
		user.StoreName = &store
	}

	existing, err := h.store.GetUserByEmail(r.Context(), user.Email)
	if err != nil {
		h.logger.Errorw("lookup user by email failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Errorw("hash password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.PasswordHash = hash

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Errorw("create user failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		h.logger.Errorw("issue tokens failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Infow("user registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, resp)
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		h.logger.Errorw("lookup user by email failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if user.Status == model.UserStatusBlocked {
		writeError(w, http.StatusForbidden, "account is blocked")
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		h.logger.Errorw("issue tokens failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Infow("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, resp)
}

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims, err := ParseToken(h.cfg, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if claims.Type != TokenTypeRefresh {
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return
	}
	id, err := claims.UserID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// 角色或封禁状态可能已变化，重新读取用户
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	if user.Status == model.UserStatusBlocked {
		writeError(w, http.StatusForbidden, "account is blocked")
		return
	}

	accessToken, err := GenerateAccessToken(h.cfg, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Me 获取当前用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !CheckPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "incorrect old password")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		h.logger.Errorw("update password failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) issueTokens(user *model.User) (*AuthResponse, error) {
	accessToken, err := GenerateAccessToken(h.cfg, user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := GenerateRefreshToken(h.cfg, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
//
// 邮箱已注册为其他角色时提升为 admin。
func EnsureAdminUser(ctx context.Context, store UserStore, adminEmail, adminPassword string, logger *logging.Logger) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Nop()
	}
	email := normalizeEmail(adminEmail)

	existing, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.UserRoleAdmin {
			if err := store.UpdateUserRole(ctx, existing.ID, model.UserRoleAdmin); err != nil {
				return fmt.Errorf("upgrade admin user: %w", err)
			}
			logger.Infow("upgraded user to admin", "user_id", existing.ID)
		}
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user := &model.User{
		Email:        email,
		Name:         "Admin",
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		Status:       model.UserStatusActive,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.Infow("created admin user", "user_id", user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeAndValidate 解析 JSON 请求体并校验，失败时写入 400
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if fe := validation.Struct(v); fe != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fe.Error(), "field": fe.Field})
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
