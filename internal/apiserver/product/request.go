package product

import (
	"github.com/shopspring/decimal"

	"automarket/internal/shared/model"
)

// Fields 商品描述性字段（创建与编辑共用）
type Fields struct {
	Name        string          `json:"name" validate:"required,notblank,max=200"`
	SKU         string          `json:"sku" validate:"max=100"`
	Description string          `json:"description" validate:"max=5000"`
	Brand       string          `json:"brand" validate:"max=100"`
	Category    string          `json:"category" validate:"required,notblank,max=100"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// priceValid 价格必须为正数，最多两位小数
func (f Fields) priceValid() bool {
	return f.Price.IsPositive() && f.Price.Equal(f.Price.Round(2))
}

func (f Fields) applyTo(p *model.Product) {
	p.Name = f.Name
	p.SKU = f.SKU
	p.Description = f.Description
	p.Brand = f.Brand
	p.Category = f.Category
	p.Price = f.Price
	p.Stock = f.Stock
}

// CreateRequest 创建商品
//
// 供应商创建时 vendor_id 取自身 ID，submit=true 时直接进入待审核；
// 管理员必须指定 vendor_id，可用 status 直接创建为 approved。
type CreateRequest struct {
	Fields
	VendorID int64  `json:"vendor_id" validate:"omitempty,gt=0"`
	Submit   bool   `json:"submit"`
	Status   string `json:"status" validate:"omitempty,oneof=draft pending_review approved"`
}

// UpdateRequest 编辑商品描述信息（不修改状态）
type UpdateRequest struct {
	Fields
}

// FeaturedRequest 设置推荐标记
type FeaturedRequest struct {
	Featured bool `json:"featured"`
}

// ListResponse 商品列表响应
type ListResponse struct {
	Products []*model.Product `json:"products"`
	Count    int              `json:"count"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}
