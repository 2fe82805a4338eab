package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"automarket/internal/shared/model"
	sqlitedriver "automarket/internal/shared/storage/driver/sqlite"
	"automarket/internal/shared/storage/repository"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (http.Handler, *repository.Store) {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	NewHandler(store, testCfg, nil).RegisterRoutes(mux)
	return Middleware(testCfg, nil)(mux), store
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) AuthResponse {
	t.Helper()
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "Parts@Example.com", "name": "Parts Co", "password": "s3cretpass",
		"role": "vendor", "store_name": "Parts Co Store",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeAuth(t, rec)
	assert.Equal(t, "parts@example.com", reg.User.Email)
	assert.Equal(t, model.UserRoleVendor, reg.User.Role)
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "parts@example.com", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeAuth(t, rec)

	rec = doJSON(t, h, "GET", "/api/v1/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, reg.User.ID, me.ID)

	rec = doJSON(t, h, "POST", "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"vendor without store", map[string]string{"email": "a@b.io", "name": "A", "password": "longenough", "role": "vendor"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "a@b.io", "name": "A", "password": "short"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "nope", "name": "A", "password": "longenough"}, http.StatusBadRequest},
		{"admin self-registration", map[string]string{"email": "a@b.io", "name": "A", "password": "longenough", "role": "admin"}, http.StatusBadRequest},
		{"customer", map[string]string{"email": "a@b.io", "name": "A", "password": "longenough"}, http.StatusCreated},
		{"duplicate", map[string]string{"email": "A@b.io", "name": "A", "password": "longenough"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestBlockedUserCannotLoginOrRefresh(t *testing.T) {
	h, store := newTestServer(t)

	rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "buyer@example.com", "name": "Buyer", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decodeAuth(t, rec)

	require.NoError(t, store.UpdateUserStatus(context.Background(), reg.User.ID, model.UserStatusBlocked))

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "buyer@example.com", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": reg.RefreshToken,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestServer(t)
	doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "buyer@example.com", "name": "Buyer", "password": "s3cretpass",
	})

	rec := doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "buyer@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "s3cretpass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "buyer@example.com", "name": "Buyer", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeAuth(t, rec).AccessToken

	rec = doJSON(t, h, "PUT", "/api/v1/auth/password", token, map[string]string{
		"old_password": "wrong-password", "new_password": "newpassword1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, "PUT", "/api/v1/auth/password", token, map[string]string{
		"old_password": "s3cretpass", "new_password": "newpassword1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "buyer@example.com", "password": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnsureAdminUser(t *testing.T) {
	_, store := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, EnsureAdminUser(ctx, store, "", "", nil))

	require.NoError(t, EnsureAdminUser(ctx, store, "Admin@Example.com", "adminpass", nil))
	admin, err := store.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.UserRoleAdmin, admin.Role)
	assert.True(t, CheckPassword("adminpass", admin.PasswordHash))

	// 重复调用幂等
	require.NoError(t, EnsureAdminUser(ctx, store, "admin@example.com", "adminpass", nil))

	existing := &model.User{Email: "ops@example.com", Name: "Ops", PasswordHash: "x", Role: model.UserRoleCustomer}
	require.NoError(t, store.CreateUser(ctx, existing))
	require.NoError(t, EnsureAdminUser(ctx, store, "ops@example.com", "whatever", nil))
	upgraded, err := store.GetUserByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, upgraded.Role)
}
