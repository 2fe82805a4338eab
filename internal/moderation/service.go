package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
	"automarket/pkg/logging"
)

// Store 审核服务依赖的存储接口
type Store interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)
	TransitionProductStatus(ctx context.Context, t *model.StatusTransition) error
	ListModerationEvents(ctx context.Context, productID int64, limit int) ([]*model.ModerationEvent, error)
}

// EventPublisher 审核事件发布（事务提交后调用）
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error
}

// Recorder 审核指标记录
type Recorder interface {
	RecordModeration(action, result string)
}

// 指标 result 标签
const (
	ResultOK                = "ok"
	ResultValidation        = "validation"
	ResultUnauthorized      = "unauthorized"
	ResultNotFound          = "not_found"
	ResultInvalidTransition = "invalid_transition"
	ResultError             = "error"
)

// 审核历史分页
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// Service 商品审核服务
type Service struct {
	store     Store
	publisher EventPublisher
	recorder  Recorder
	logger    *logging.Logger
	now       func() time.Time
}

// Option 服务选项
type Option func(*Service)

// WithPublisher 设置事件发布器
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建审核服务
func NewService(store Store, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// 审核动作
// ============================================================================

// Submit 提交审核（draft → pending_review）
func (s *Service) Submit(ctx context.Context, actor Actor, productID int64) (*model.Product, error) {
	return s.Handle(ctx, actor, SubmitRequest{ProductID: productID})
}

// Approve 审核通过
func (s *Service) Approve(ctx context.Context, actor Actor, productID int64) (*model.Product, error) {
	return s.Handle(ctx, actor, ApproveRequest{ProductID: productID})
}

// Reject 驳回
func (s *Service) Reject(ctx context.Context, actor Actor, productID int64, reason string) (*model.Product, error) {
	return s.Handle(ctx, actor, RejectRequest{ProductID: productID, Reason: reason})
}

// Unpublish 下架
func (s *Service) Unpublish(ctx context.Context, actor Actor, productID int64, reason string) (*model.Product, error) {
	return s.Handle(ctx, actor, UnpublishRequest{ProductID: productID, Reason: reason})
}

// Resubmit 重新提交审核
func (s *Service) Resubmit(ctx context.Context, actor Actor, productID int64) (*model.Product, error) {
	return s.Handle(ctx, actor, ResubmitRequest{ProductID: productID})
}

// Handle 执行任意审核请求
func (s *Service) Handle(ctx context.Context, actor Actor, req Request) (*model.Product, error) {
	var action model.ModerationAction
	if req != nil {
		action = req.Action()
	}
	p, err := s.handle(ctx, actor, req)
	if s.recorder != nil {
		s.recorder.RecordModeration(string(action), resultOf(err))
	}
	return p, err
}

func (s *Service) handle(ctx context.Context, actor Actor, req Request) (*model.Product, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	action := req.Action()
	if err := checkRole(action, actor); err != nil {
		return nil, err
	}

	id := req.Target()
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	if current == nil {
		return nil, notFound(id)
	}

	next, err := Apply(*current, action, actor, req.reason(), s.now())
	if err != nil {
		return nil, err
	}

	event := &model.ModerationEvent{
		ID:         uuid.NewString(),
		ProductID:  id,
		VendorID:   current.VendorID,
		Action:     action,
		FromStatus: current.Status,
		ToStatus:   next.Status,
		Reason:     next.RejectionReason,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		CreatedAt:  next.UpdatedAt,
	}
	t := &model.StatusTransition{
		ProductID:       id,
		From:            current.Status,
		To:              next.Status,
		RejectionReason: next.RejectionReason,
		Featured:        next.Featured,
		UpdatedAt:       next.UpdatedAt,
		Event:           event,
	}
	if err := s.store.TransitionProductStatus(ctx, t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, s.conflict(ctx, action, id)
		}
		return nil, fmt.Errorf("persist %s for product %d: %w", action, id, err)
	}

	s.logger.Infow("product status changed",
		"product_id", id,
		"action", action,
		"from", current.Status,
		"to", next.Status,
		"actor_id", actor.ID,
		"actor_role", actor.Role,
	)
	s.publish(ctx, event)
	return &next, nil
}

// conflict 条件更新未命中：重新读取当前状态
func (s *Service) conflict(ctx context.Context, action model.ModerationAction, id int64) error {
	latest, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("reload product %d: %w", id, err)
	}
	if latest == nil {
		return notFound(id)
	}
	s.logger.Warnw("concurrent status change detected",
		"product_id", id, "action", action, "current", latest.Status)
	return &TransitionError{Action: action, Current: latest.Status}
}

func (s *Service) publish(ctx context.Context, event *model.ModerationEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishModerationEvent(ctx, event); err != nil {
		s.logger.Errorw("failed to publish moderation event",
			"product_id", event.ProductID, "event_id", event.ID, "error", err)
	}
}

// ============================================================================
// 查询
// ============================================================================

// History 商品审核记录（管理员或所属供应商）
func (s *Service) History(ctx context.Context, actor Actor, productID int64, limit int) ([]*model.ModerationEvent, error) {
	if !actor.IsAdmin() && actor.Role != model.UserRoleVendor {
		return nil, unauthorized("role " + string(actor.Role) + " cannot read moderation history")
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}
	if p == nil {
		return nil, notFound(productID)
	}
	if !actor.CanManage(p) {
		// 与商品详情一致：未公开的商品对无权者表现为不存在
		if !p.Status.PubliclyVisible() {
			return nil, notFound(productID)
		}
		return nil, unauthorized("product belongs to another vendor")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.ListModerationEvents(ctx, productID, limit)
}

// Queue 待审核队列（仅管理员）
func (s *Service) Queue(ctx context.Context, actor Actor, limit, offset int) ([]*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, unauthorized("admin role required to read the review queue")
	}
	filter := model.ProductFilter{
		Statuses: []model.ProductStatus{model.ProductStatusPendingReview},
		Oldest:   true,
		Limit:    limit,
		Offset:   offset,
	}
	filter.Normalize()
	return s.store.ListProducts(ctx, filter)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrValidation):
		return ResultValidation
	case errors.Is(err, ErrUnauthorized):
		return ResultUnauthorized
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, ErrInvalidTransition):
		return ResultInvalidTransition
	default:
		return ResultError
	}
}
