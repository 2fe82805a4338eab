package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automarket/internal/shared/model"
	sqlitedriver "automarket/internal/shared/storage/driver/sqlite"
	"automarket/internal/shared/storage/repository"
	"automarket/pkg/logging"
)

// ============================================================================
// 测试辅助
// ============================================================================

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

// stepClock 每次调用前进一秒
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.ModerationEvent
	err    error
}

func (p *recordingPublisher) PublishModerationEvent(_ context.Context, e *model.ModerationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordModeration(action, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[action+"/"+result]++
}

func seedProduct(t *testing.T, store *repository.Store, status model.ProductStatus, vendorID int64) *model.Product {
	t.Helper()
	p := &model.Product{
		VendorID: vendorID,
		Name:     "Oil filter",
		Category: "filters",
		Price:    decimal.RequireFromString("12.50"),
		Stock:    10,
		Status:   status,
	}
	if status.CarriesReason() {
		r := "seeded"
		p.RejectionReason = &r
	}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func newService(t *testing.T, opts ...Option) (*Service, *repository.Store) {
	store := newTestStore(t)
	opts = append([]Option{WithClock(stepClock())}, opts...)
	return NewService(store, logging.Nop(), opts...), store
}

// ============================================================================
// 完整流程
// ============================================================================

func TestScenarioRejectResubmitApproveUnpublish(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newService(t, WithPublisher(pub))
	ctx := context.Background()

	p := seedProduct(t, store, model.ProductStatusPendingReview, 7)
	require.Equal(t, int64(1), p.ID)

	got, err := svc.Reject(ctx, admin, 1, "Missing safety certification")
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "Missing safety certification", *got.RejectionReason)

	got, err = svc.Resubmit(ctx, VendorActor(7), 1)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusPendingReview, got.Status)
	assert.Nil(t, got.RejectionReason)

	got, err = svc.Approve(ctx, admin, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusApproved, got.Status)
	assert.Nil(t, got.RejectionReason)

	got, err = svc.Unpublish(ctx, admin, 1, "Recalled by manufacturer")
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusUnpublished, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "Recalled by manufacturer", *got.RejectionReason)

	// 持久化结果与返回值一致
	stored, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusUnpublished, stored.Status)
	assert.Equal(t, "Recalled by manufacturer", *stored.RejectionReason)

	history, err := svc.History(ctx, VendorActor(7), 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	wantActions := []model.ModerationAction{
		model.ModerationActionReject,
		model.ModerationActionResubmit,
		model.ModerationActionApprove,
		model.ModerationActionUnpublish,
	}
	for i, e := range history {
		assert.Equal(t, wantActions[i], e.Action)
		assert.Equal(t, int64(7), e.VendorID)
	}
	assert.Equal(t, model.UserRoleVendor, history[1].ActorRole)

	require.Len(t, pub.events, 4)
	assert.Equal(t, history[3].ID, pub.events[3].ID)
}

func TestUnpublishClearsFeatured(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	p := seedProduct(t, store, model.ProductStatusApproved, 7)
	require.NoError(t, store.SetProductFeatured(ctx, p.ID, true))

	got, err := svc.Unpublish(ctx, admin, p.ID, "Stock issue")
	require.NoError(t, err)
	assert.False(t, got.Featured)

	stored, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, stored.Featured)
}

// ============================================================================
// 检查顺序与错误类型
// ============================================================================

func TestServiceErrors(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	draft := seedProduct(t, store, model.ProductStatusDraft, 7)
	approved := seedProduct(t, store, model.ProductStatusApproved, 7)

	tests := []struct {
		name  string
		actor Actor
		req   Request
		want  error
	}{
		{"validation before lookup", admin, RejectRequest{ProductID: 999, Reason: "  "}, ErrValidation},
		{"missing product id", admin, SubmitRequest{}, ErrValidation},
		{"role before lookup", owner, ApproveRequest{ProductID: 999}, ErrUnauthorized},
		{"customer rejected", shopper, SubmitRequest{ProductID: draft.ID}, ErrUnauthorized},
		{"not found", admin, ApproveRequest{ProductID: 999}, ErrNotFound},
		{"ownership", other, SubmitRequest{ProductID: draft.ID}, ErrUnauthorized},
		{"invalid transition", admin, ApproveRequest{ProductID: draft.ID}, ErrInvalidTransition},
		{"unpublish requires approved", admin, UnpublishRequest{ProductID: draft.ID, Reason: "x"}, ErrInvalidTransition},
		{"resubmit from approved", owner, ResubmitRequest{ProductID: approved.ID}, ErrInvalidTransition},
		{"nil request", admin, nil, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Handle(ctx, tt.actor, tt.req)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var te *TransitionError
	_, err := svc.Approve(ctx, admin, draft.ID)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.ProductStatusDraft, te.Current)

	events, err := store.ListModerationEvents(ctx, draft.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "failed operations must not write audit records")
}

// racingStore 在条件更新前模拟另一个管理员抢先修改状态
type racingStore struct {
	*repository.Store
	once   sync.Once
	before func()
}

func (r *racingStore) TransitionProductStatus(ctx context.Context, t *model.StatusTransition) error {
	r.once.Do(r.before)
	return r.Store.TransitionProductStatus(ctx, t)
}

func TestConcurrentChangeReportsCurrentStatus(t *testing.T) {
	inner := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, inner, model.ProductStatusPendingReview, 7)

	reason := "duplicate listing"
	store := &racingStore{Store: inner, before: func() {
		err := inner.TransitionProductStatus(ctx, &model.StatusTransition{
			ProductID:       p.ID,
			From:            model.ProductStatusPendingReview,
			To:              model.ProductStatusRejected,
			RejectionReason: &reason,
			UpdatedAt:       time.Now().UTC(),
			Event: &model.ModerationEvent{
				ID: uuid.NewString(), ProductID: p.ID, VendorID: 7,
				Action:     model.ModerationActionReject,
				FromStatus: model.ProductStatusPendingReview, ToStatus: model.ProductStatusRejected,
				Reason: &reason, ActorID: 2, ActorRole: model.UserRoleAdmin, CreatedAt: time.Now().UTC(),
			},
		})
		require.NoError(t, err)
	}}

	rec := &countingRecorder{}
	pub := &recordingPublisher{}
	svc := NewService(store, logging.Nop(), WithRecorder(rec), WithPublisher(pub))

	_, err := svc.Approve(ctx, admin, p.ID)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.ProductStatusRejected, te.Current)
	assert.Equal(t, 1, rec.counts["approve/invalid_transition"])
	assert.Empty(t, pub.events)

	stored, err := inner.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusRejected, stored.Status)
	assert.Equal(t, "duplicate listing", *stored.RejectionReason)
}

func TestConcurrentDeleteReportsNotFound(t *testing.T) {
	inner := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, inner, model.ProductStatusDraft, 7)

	store := &racingStore{Store: inner, before: func() {
		require.NoError(t, inner.DeleteProduct(ctx, p.ID))
	}}
	svc := NewService(store, nil)

	_, err := svc.Submit(ctx, owner, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// 副作用
// ============================================================================

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, store := newService(t, WithPublisher(pub))
	p := seedProduct(t, store, model.ProductStatusDraft, 7)

	got, err := svc.Submit(context.Background(), owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusPendingReview, got.Status)
	require.Len(t, pub.events, 1)

	e := pub.events[0]
	assert.Equal(t, model.ModerationActionSubmit, e.Action)
	assert.Equal(t, model.ProductStatusDraft, e.FromStatus)
	assert.Equal(t, model.ProductStatusPendingReview, e.ToStatus)
	assert.Equal(t, owner.ID, e.ActorID)
	_, perr := uuid.Parse(e.ID)
	assert.NoError(t, perr)
}

func TestRecorderCountsResults(t *testing.T) {
	rec := &countingRecorder{}
	svc, store := newService(t, WithRecorder(rec))
	ctx := context.Background()
	p := seedProduct(t, store, model.ProductStatusDraft, 7)

	_, _ = svc.Submit(ctx, owner, p.ID)
	_, _ = svc.Submit(ctx, owner, p.ID)
	_, _ = svc.Approve(ctx, owner, p.ID)
	_, _ = svc.Reject(ctx, admin, p.ID, "")
	_, _ = svc.Resubmit(ctx, admin, 999)

	assert.Equal(t, map[string]int{
		"submit/ok":                 1,
		"submit/invalid_transition": 1,
		"approve/unauthorized":      1,
		"reject/validation":         1,
		"resubmit/not_found":        1,
	}, rec.counts)
}

// ============================================================================
// 查询
// ============================================================================

func TestHistoryAccess(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	p := seedProduct(t, store, model.ProductStatusDraft, 7)
	_, err := svc.Submit(ctx, owner, p.ID)
	require.NoError(t, err)

	events, err := svc.History(ctx, admin, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// 未公开商品对其他供应商表现为不存在
	_, err = svc.History(ctx, other, p.ID, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	approved := seedProduct(t, store, model.ProductStatusApproved, 7)
	_, err = svc.History(ctx, other, approved.ID, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.History(ctx, shopper, p.ID, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.History(ctx, admin, 999, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

// limitStore 记录历史查询的 limit
type limitStore struct {
	*repository.Store
	limits []int
}

func (l *limitStore) ListModerationEvents(ctx context.Context, productID int64, limit int) ([]*model.ModerationEvent, error) {
	l.limits = append(l.limits, limit)
	return l.Store.ListModerationEvents(ctx, productID, limit)
}

func TestHistoryLimit(t *testing.T) {
	inner := newTestStore(t)
	p := seedProduct(t, inner, model.ProductStatusDraft, 7)
	store := &limitStore{Store: inner}
	svc := NewService(store, nil)

	for _, limit := range []int{0, -1, 25, MaxHistoryLimit, MaxHistoryLimit + 1, 10000} {
		_, err := svc.History(context.Background(), admin, p.ID, limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{
		DefaultHistoryLimit, DefaultHistoryLimit, 25, MaxHistoryLimit, MaxHistoryLimit, MaxHistoryLimit,
	}, store.limits)
}

func TestQueueListsPendingOldestFirst(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first := seedProduct(t, store, model.ProductStatusDraft, 7)
	second := seedProduct(t, store, model.ProductStatusDraft, 8)
	seedProduct(t, store, model.ProductStatusApproved, 7)

	_, err := svc.Submit(ctx, owner, first.ID)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, VendorActor(8), second.ID)
	require.NoError(t, err)

	queue, err := svc.Queue(ctx, admin, 0, 0)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)

	_, err = svc.Queue(ctx, owner, 0, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
