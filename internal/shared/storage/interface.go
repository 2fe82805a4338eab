// Package storage 定义持久化存储层抽象接口
//
// 调用方只依赖接口，具体实现在子包中：
//   - repository/：数据库无关的 SQL 实现（PostgreSQL、SQLite）
//   - mongostore/：MongoDB 实现
package storage

import (
	"context"

	"automarket/internal/shared/model"
)

// ============================================================================
// 实体存储接口
// ============================================================================

// ProductStore 商品存储
//
// 单条查询在记录不存在时返回 (nil, nil)。
type ProductStore interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)
	UpdateProduct(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// SetProductFeatured 设置推荐标记；置为 true 时要求商品处于 approved，否则返回 ErrConflict
	SetProductFeatured(ctx context.Context, id int64, featured bool) error
	SetProductImage(ctx context.Context, id int64, imageKey *string) error
}

// ModerationStore 审核状态迁移与审计记录
type ModerationStore interface {
	// TransitionProductStatus 条件更新商品状态并写入审计记录
	// 当前状态不等于 t.From 时不做任何修改并返回 ErrConflict
	TransitionProductStatus(ctx context.Context, t *model.StatusTransition) error
	ListModerationEvents(ctx context.Context, productID int64, limit int) ([]*model.ModerationEvent, error)
}

// UserStore 用户存储
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error
	UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error
	ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
}

// ============================================================================
// 组合接口
// ============================================================================

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	ProductStore
	ModerationStore
	UserStore
	Close() error
}
