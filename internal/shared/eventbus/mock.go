package eventbus

import (
	"context"
	"sync"

	"automarket/internal/shared/model"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（events.driver = none）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

func (e *NoOpEventBus) Close() error {
	return nil
}

func (e *NoOpEventBus) PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error {
	return nil
}

// SubscribeModerationEvents 返回在 ctx 结束时关闭的空 channel
func (e *NoOpEventBus) SubscribeModerationEvents(ctx context.Context) (<-chan *model.ModerationEvent, error) {
	ch := make(chan *model.ModerationEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

var _ EventBus = (*NoOpEventBus)(nil)

// ============================================================================
// MemoryEventBus - 进程内事件总线（单实例部署和测试）
// ============================================================================

// MemoryEventBus 进程内扇出，订阅方消费过慢时丢弃事件
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[chan *model.ModerationEvent]struct{}
	recent []*model.ModerationEvent // 旧 → 新，最多 RecentBuffer 条
	closed bool
}

// NewMemoryEventBus 创建进程内事件总线
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{subs: make(map[chan *model.ModerationEvent]struct{})}
}

func (m *MemoryEventBus) PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, event)
	if len(m.recent) > RecentBuffer {
		m.recent = m.recent[len(m.recent)-RecentBuffer:]
	}
	for ch := range m.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MemoryEventBus) SubscribeModerationEvents(ctx context.Context) (<-chan *model.ModerationEvent, error) {
	ch := make(chan *model.ModerationEvent, SubscriberBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, nil
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.remove(ch)
	}()
	return ch, nil
}

func (m *MemoryEventBus) remove(ch chan *model.ModerationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

// RecentModerationEvents 最近 count 条事件（新 → 旧）
func (m *MemoryEventBus) RecentModerationEvents(ctx context.Context, count int64) ([]*model.ModerationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.recent)
	if count >= 0 && int(count) < n {
		n = int(count)
	}
	out := make([]*model.ModerationEvent, 0, n)
	for i := len(m.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.recent[i])
	}
	return out, nil
}

// Subscribers 当前订阅数
func (m *MemoryEventBus) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *MemoryEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
	return nil
}

var (
	_ EventBus          = (*MemoryEventBus)(nil)
	_ ModerationHistory = (*MemoryEventBus)(nil)
)
