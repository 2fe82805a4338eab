package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	s, err := NewStore(uri, "automarket_test", nil)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	ctx := context.Background()
	require.NoError(t, s.db.Drop(ctx))
	require.NoError(t, s.ensureIndexes(ctx))

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func strPtr(s string) *string { return &s }

func TestProductCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &model.Product{VendorID: 7, Name: "pads", Price: decimal.RequireFromString("49.90"), Stock: 2}
	require.NoError(t, s.CreateProduct(ctx, p))
	assert.Equal(t, int64(1), p.ID)

	second := &model.Product{VendorID: 7, Name: "discs", Price: decimal.RequireFromString("120")}
	require.NoError(t, s.CreateProduct(ctx, second))
	assert.Equal(t, int64(2), second.ID)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ProductStatusDraft, got.Status)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("49.9")))

	got.Name = "ceramic pads"
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateProduct(ctx, got))
	again, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ceramic pads", again.Name)

	missing, err := s.GetProduct(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), storage.ErrNotFound)
}

func TestListProducts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, st := range []model.ProductStatus{model.ProductStatusPendingReview, model.ProductStatusPendingReview, model.ProductStatusApproved} {
		p := &model.Product{
			VendorID:  7,
			Name:      string(rune('a' + i)),
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(10-i) * time.Minute),
		}
		require.NoError(t, s.CreateProduct(ctx, p))
	}

	queue, err := s.ListProducts(ctx, model.ProductFilter{
		Statuses: []model.ProductStatus{model.ProductStatusPendingReview},
		Oldest:   true,
	})
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "b", queue[0].Name)

	all, err := s.ListProducts(ctx, model.ProductFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].Name)
}

func TestTransitionAndHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &model.Product{VendorID: 7, Name: "filter", Status: model.ProductStatusPendingReview}
	require.NoError(t, s.CreateProduct(ctx, p))

	now := time.Now().UTC().Truncate(time.Millisecond)
	reason := strPtr("missing OEM number")
	tr := &model.StatusTransition{
		ProductID:       p.ID,
		From:            model.ProductStatusPendingReview,
		To:              model.ProductStatusRejected,
		RejectionReason: reason,
		UpdatedAt:       now,
		Event: &model.ModerationEvent{
			ID: uuid.NewString(), ProductID: p.ID, VendorID: 7,
			Action:     model.ModerationActionReject,
			FromStatus: model.ProductStatusPendingReview, ToStatus: model.ProductStatusRejected,
			Reason: reason, ActorID: 1, ActorRole: model.UserRoleAdmin, CreatedAt: now,
		},
	}
	require.NoError(t, s.TransitionProductStatus(ctx, tr))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "missing OEM number", *got.RejectionReason)

	// 同一迁移再执行一次：状态已变化
	tr.Event.ID = uuid.NewString()
	assert.ErrorIs(t, s.TransitionProductStatus(ctx, tr), storage.ErrConflict)

	events, err := s.ListModerationEvents(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1, "conflicting transition must not leave an audit record")
	assert.Equal(t, model.ModerationActionReject, events[0].Action)
}

func TestSetProductFeatured(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	draft := &model.Product{VendorID: 7, Name: "draft"}
	require.NoError(t, s.CreateProduct(ctx, draft))
	assert.ErrorIs(t, s.SetProductFeatured(ctx, draft.ID, true), storage.ErrConflict)
	assert.ErrorIs(t, s.SetProductFeatured(ctx, 999, true), storage.ErrNotFound)

	live := &model.Product{VendorID: 7, Name: "live", Status: model.ProductStatusApproved}
	require.NoError(t, s.CreateProduct(ctx, live))
	require.NoError(t, s.SetProductFeatured(ctx, live.ID, true))
	require.NoError(t, s.SetProductImage(ctx, live.ID, strPtr("products/2/x.png")))

	got, err := s.GetProduct(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.Featured)
	require.NotNil(t, got.ImageKey)
}

func TestUserCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u := &model.User{Email: "v@example.com", PasswordHash: "h", Role: model.UserRoleVendor}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "v@example.com", Role: model.UserRoleCustomer}), storage.ErrDuplicate)

	require.NoError(t, s.UpdateUserStatus(ctx, u.ID, model.UserStatusBlocked))
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusBlocked, got.Status)

	blocked, err := s.ListUsers(ctx, model.UserFilter{Status: model.UserStatusBlocked})
	require.NoError(t, err)
	assert.Len(t, blocked, 1)

	assert.ErrorIs(t, s.UpdateUserPassword(ctx, 999, "x"), storage.ErrNotFound)
}
