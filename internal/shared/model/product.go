// Package model 定义核心数据模型
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus 商品审核状态
type ProductStatus string

const (
	ProductStatusDraft         ProductStatus = "draft"
	ProductStatusPendingReview ProductStatus = "pending_review"
	ProductStatusApproved      ProductStatus = "approved"
	ProductStatusRejected      ProductStatus = "rejected"
	ProductStatusUnpublished   ProductStatus = "unpublished"
)

// ProductStatuses 全部状态（按生命周期顺序）
var ProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusPendingReview,
	ProductStatusApproved,
	ProductStatusRejected,
	ProductStatusUnpublished,
}

// Valid 是否为已知状态
func (s ProductStatus) Valid() bool {
	for _, st := range ProductStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CarriesReason 该状态下 rejection_reason 必须非空
func (s ProductStatus) CarriesReason() bool {
	return s == ProductStatusRejected || s == ProductStatusUnpublished
}

// PubliclyVisible 只有 approved 的商品对游客和买家可见
func (s ProductStatus) PubliclyVisible() bool {
	return s == ProductStatusApproved
}

// Product 商品
type Product struct {
	ID              int64           `json:"id" bson:"_id" db:"id"`
	VendorID        int64           `json:"vendor_id" bson:"vendor_id" db:"vendor_id"`
	Name            string          `json:"name" bson:"name" db:"name"`
	SKU             string          `json:"sku" bson:"sku" db:"sku"`
	Description     string          `json:"description" bson:"description" db:"description"`
	Brand           string          `json:"brand" bson:"brand" db:"brand"`
	Category        string          `json:"category" bson:"category" db:"category"`
	Price           decimal.Decimal `json:"price" bson:"-" db:"price"`
	Stock           int             `json:"stock" bson:"stock" db:"stock"`
	ImageKey        *string         `json:"image_key,omitempty" bson:"image_key,omitempty" db:"image_key"`
	Status          ProductStatus   `json:"status" bson:"status" db:"status"`
	RejectionReason *string         `json:"rejection_reason" bson:"rejection_reason" db:"rejection_reason"`
	Featured        bool            `json:"featured" bson:"featured" db:"featured"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Editable 供应商可以编辑的状态
func (p *Product) Editable() bool {
	switch p.Status {
	case ProductStatusDraft, ProductStatusRejected, ProductStatusUnpublished:
		return true
	}
	return false
}

// ProductFilter 商品列表过滤条件
type ProductFilter struct {
	Statuses []ProductStatus
	VendorID *int64
	Category string
	Featured *bool
	Oldest   bool // 按 updated_at 升序（审核队列先进先出）
	Limit    int
	Offset   int
}

// DefaultProductLimit 列表默认分页大小
const DefaultProductLimit = 50

// MaxProductLimit 列表最大分页大小
const MaxProductLimit = 200

// Normalize 填充分页默认值
func (f *ProductFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultProductLimit
	}
	if f.Limit > MaxProductLimit {
		f.Limit = MaxProductLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
