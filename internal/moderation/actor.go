package moderation

import "automarket/internal/shared/model"

// Actor 发起操作的主体，由调用方显式传入
type Actor struct {
	ID   int64
	Role model.UserRole
}

// AdminActor 管理员
func AdminActor(id int64) Actor {
	return Actor{ID: id, Role: model.UserRoleAdmin}
}

// VendorActor 供应商
func VendorActor(id int64) Actor {
	return Actor{ID: id, Role: model.UserRoleVendor}
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool {
	return a.Role == model.UserRoleAdmin
}

// Owns 供应商是否拥有该商品
func (a Actor) Owns(p *model.Product) bool {
	return a.Role == model.UserRoleVendor && p != nil && p.VendorID == a.ID
}

// CanManage 管理员或商品所有者
func (a Actor) CanManage(p *model.Product) bool {
	return a.IsAdmin() || a.Owns(p)
}
