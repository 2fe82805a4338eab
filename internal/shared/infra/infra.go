// Package infra 基础设施聚合层
//
// 按配置构建：
//   - Storage：持久化存储（PostgreSQL / SQLite / MongoDB）
//   - EventBus：审核事件总线（Redis Streams / RabbitMQ / 内存 / 空操作）
//   - Images：商品图片对象存储（MinIO，可选）
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automarket/internal/config"
	"automarket/internal/shared/eventbus"
	"automarket/internal/shared/eventbus/rabbitmq"
	eventbusredis "automarket/internal/shared/eventbus/redis"
	"automarket/internal/shared/objstore"
	"automarket/internal/shared/storage"
	"automarket/internal/shared/storage/dbutil"
	pgdriver "automarket/internal/shared/storage/driver/postgres"
	sqlitedriver "automarket/internal/shared/storage/driver/sqlite"
	"automarket/internal/shared/storage/mongostore"
	"automarket/internal/shared/storage/repository"
	"automarket/pkg/logging"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	Storage  storage.PersistentStore
	EventBus eventbus.EventBus
	Images   *objstore.Client // 未配置 MinIO 时为 nil
}

// New 按配置初始化全部基础设施，任一失败时关闭已打开的连接
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Infrastructure, error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	infra := &Infrastructure{Storage: store}

	bus, err := NewEventBus(cfg, logger)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.EventBus = bus

	if cfg.MinIO.Enabled() {
		images, err := objstore.NewClient(cfg.MinIO, logger.Named("objstore"))
		if err != nil {
			infra.Close()
			return nil, err
		}
		ectx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := images.EnsureBucket(ectx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.Images = images
	}

	return infra, nil
}

// OpenStore 按 DatabaseDriver 打开持久化存储并迁移 Schema
func OpenStore(cfg *config.Config, logger *logging.Logger) (storage.PersistentStore, error) {
	switch cfg.DatabaseDriver {
	case "mongodb":
		return mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseDBName, logger.Named("mongostore"))
	case "postgres":
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrate(repository.NewStore(db, pgdriver.NewDialect()))
	case "sqlite", "":
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return migrate(repository.NewStore(db, sqlitedriver.NewDialect()))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func migrate(store *repository.Store) (*repository.Store, error) {
	var d dbutil.Dialect = store.Dialect()
	if err := d.AutoMigrate(store.DB()); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s migrate: %w", d.DriverType(), err)
	}
	return store, nil
}

// NewEventBus 按 events.driver 创建事件总线
func NewEventBus(cfg *config.Config, logger *logging.Logger) (eventbus.EventBus, error) {
	switch cfg.Events.Driver {
	case "redis":
		return eventbusredis.NewStoreFromURL(cfg.RedisURL,
			eventbusredis.WithStream(cfg.Events.StreamKey, cfg.Events.MaxLen),
			eventbusredis.WithLogger(logger.Named("eventbus")),
		)
	case "rabbitmq":
		return rabbitmq.NewBroker(rabbitmq.Config{
			URL:           cfg.RabbitMQ.URL,
			Exchange:      cfg.RabbitMQ.Exchange,
			Queue:         cfg.RabbitMQ.Queue,
			PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		}, logger.Named("eventbus"))
	case "memory", "":
		return eventbus.NewMemoryEventBus(), nil
	case "none":
		return eventbus.NewNoOpEventBus(), nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Events.Driver)
	}
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var errs []error
	if i.EventBus != nil {
		if err := i.EventBus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
