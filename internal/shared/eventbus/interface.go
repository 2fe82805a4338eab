// Package eventbus 审核事件总线抽象接口
//
// 状态变更提交后发布 ModerationEvent，WebSocket 网关等消费方订阅。
// 实现：Redis Streams、RabbitMQ、进程内内存总线、空操作。
package eventbus

import (
	"context"

	"automarket/internal/shared/model"
)

// ============================================================================
// 事件总线接口定义
// ============================================================================

// ModerationPublisher 审核事件发布
type ModerationPublisher interface {
	PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error
}

// ModerationSubscriber 审核事件订阅
//
// 返回的 channel 在 ctx 取消或底层连接断开时关闭。
type ModerationSubscriber interface {
	SubscribeModerationEvents(ctx context.Context) (<-chan *model.ModerationEvent, error)
}

// ModerationHistory 最近审核事件回放（可选能力，Redis 与内存总线实现）
type ModerationHistory interface {
	// RecentModerationEvents 返回最近 count 条事件（新 → 旧）
	RecentModerationEvents(ctx context.Context, count int64) ([]*model.ModerationEvent, error)
}

// ============================================================================
// 组合接口
// ============================================================================

// EventBus 事件总线组合接口
type EventBus interface {
	ModerationPublisher
	ModerationSubscriber
	Close() error
}
