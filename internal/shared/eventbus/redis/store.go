// Package redis 基于 Redis Streams 的审核事件总线
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"automarket/internal/shared/eventbus"
	"automarket/pkg/logging"
)

// Store Redis 事件总线
type Store struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
	block     time.Duration
	retryMin  time.Duration
	retryMax  time.Duration
	logger    *logging.Logger
}

// Option 事件总线选项
type Option func(*Store)

// WithStream 设置 Stream 名称与最大长度
func WithStream(key string, maxLen int64) Option {
	return func(s *Store) {
		if key != "" {
			s.streamKey = key
		}
		if maxLen > 0 {
			s.maxLen = maxLen
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBlock 设置 XREAD 阻塞时长
func WithBlock(d time.Duration) Option {
	return func(s *Store) { s.block = d }
}

// WithRetry 设置 XREAD 失败后的退避区间
func WithRetry(min, max time.Duration) Option {
	return func(s *Store) {
		if min > 0 {
			s.retryMin = min
		}
		if max >= s.retryMin {
			s.retryMax = max
		}
	}
}

// NewStoreFromClient 从已有客户端创建
func NewStoreFromClient(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:    client,
		streamKey: eventbus.DefaultStreamKey,
		maxLen:    eventbus.MaxStreamLength,
		block:     5 * time.Second,
		retryMin:  200 * time.Millisecond,
		retryMax:  10 * time.Second,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromURL 从 URL 创建并验证连接
func NewStoreFromURL(redisURL string, opts ...Option) (*Store, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewStoreFromClient(client, opts...)
	s.logger.Infow("connected to redis", "addr", ropts.Addr, "stream", s.streamKey)
	return s, nil
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}

var _ eventbus.EventBus = (*Store)(nil)
