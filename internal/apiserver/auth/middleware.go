package auth

import (
	"net/http"
	"strings"

	"automarket/internal/shared/model"
	"automarket/pkg/logging"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/health",
	"/metrics",
	"/ws/",
}

// isPublicRoute 匿名可访问的路由
//
// 商品目录的 GET 接口对游客开放（handler 内部按角色过滤可见性），
// 审核历史除外。
func isPublicRoute(method, path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if method == http.MethodGet && strings.HasPrefix(path, "/api/v1/products") &&
		!strings.HasSuffix(path, "/history") {
		return true
	}
	return false
}

// bearerToken 提取 Authorization: Bearer <token>
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Middleware 创建 JWT 认证中间件
//
// 携带令牌的请求必须通过校验；未携带令牌时仅放行公开路由。
func Middleware(cfg Config, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				if isPublicRoute(r.Method, r.URL.Path) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			user, err := ParseAccessToken(cfg, token)
			if err != nil {
				logger.Debugw("token rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

// AdminOnly 管理员专属路由中间件
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return RequireRole(next, model.UserRoleAdmin)
}

// RequireRole 要求已登录且角色在允许列表中
func RequireRole(next http.HandlerFunc, roles ...model.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				next(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "insufficient role")
	}
}
