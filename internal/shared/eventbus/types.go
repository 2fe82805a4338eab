package eventbus

import (
	"encoding/json"
	"fmt"

	"automarket/internal/shared/model"
)

const (
	// DefaultStreamKey Redis Stream 名称
	DefaultStreamKey = "moderation_events"

	// MaxStreamLength Stream 最大长度（近似裁剪）
	MaxStreamLength = 10000

	// SubscriberBuffer 订阅 channel 缓冲
	SubscriberBuffer = 100

	// RecentBuffer 内存总线保留的最近事件数
	RecentBuffer = 100
)

// Encode 序列化审核事件
func Encode(event *model.ModerationEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("eventbus: nil event")
	}
	return json.Marshal(event)
}

// Decode 反序列化审核事件
func Decode(data []byte) (*model.ModerationEvent, error) {
	var event model.ModerationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("eventbus: decode moderation event: %w", err)
	}
	if event.ID == "" || event.ProductID == 0 {
		return nil, fmt.Errorf("eventbus: moderation event missing id or product_id")
	}
	return &event, nil
}
