package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"automarket/internal/shared/eventbus"
	"automarket/internal/shared/model"
)

// PublishModerationEvent 写入审核事件到 Stream
func (s *Store) PublishModerationEvent(ctx context.Context, event *model.ModerationEvent) error {
	data, err := eventbus.Encode(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.streamKey,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":   event.ID,
			"product_id": event.ProductID,
			"action":     string(event.Action),
			"data":       string(data),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish moderation event: %w", err)
	}

	s.logger.Debugw("published moderation event",
		"stream_id", id, "event_id", event.ID, "product_id", event.ProductID, "action", event.Action)
	return nil
}

// RecentModerationEvents 读取最近 count 条事件（新 → 旧）
func (s *Store) RecentModerationEvents(ctx context.Context, count int64) ([]*model.ModerationEvent, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.streamKey, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read moderation events: %w", err)
	}
	events := make([]*model.ModerationEvent, 0, len(msgs))
	for _, msg := range msgs {
		e, err := decodeMessage(msg)
		if err != nil {
			s.logger.Warnw("skipping malformed stream entry", "stream_id", msg.ID, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// SubscribeModerationEvents 从订阅时刻开始读取新事件
//
// 起始位置在返回前确定，之后发布的事件不会丢失。XREAD 失败时按指数退避
// 从上次读到的位置重试，channel 只在 ctx 结束时关闭。
func (s *Store) SubscribeModerationEvents(ctx context.Context) (<-chan *model.ModerationEvent, error) {
	start, err := s.lastID(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan *model.ModerationEvent, eventbus.SubscriberBuffer)

	go func() {
		defer close(ch)
		lastID := start
		delay := s.retryMin

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.streamKey, lastID},
				Count:   10,
				Block:   s.block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				s.logger.Warnw("moderation event read failed, retrying",
					"error", err, "last_id", lastID, "retry_in", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
				delay = nextDelay(delay, s.retryMax)
				continue
			}
			delay = s.retryMin

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					event, err := decodeMessage(msg)
					if err != nil {
						s.logger.Warnw("skipping malformed stream entry", "stream_id", msg.ID, "error", err)
						continue
					}
					select {
					case ch <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// nextDelay 退避时长翻倍，不超过 max
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

// lastID 当前 Stream 最后一条消息 ID，空 Stream 返回 "0-0"
func (s *Store) lastID(ctx context.Context) (string, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.streamKey, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

func decodeMessage(msg redis.XMessage) (*model.ModerationEvent, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no data field", msg.ID)
	}
	return eventbus.Decode([]byte(data))
}

var _ eventbus.ModerationHistory = (*Store)(nil)
