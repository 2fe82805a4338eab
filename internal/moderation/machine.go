// Package moderation 商品审核状态机
//
// 状态迁移：
//
//	draft          --submit-->    pending_review
//	pending_review --approve-->   approved          清空原因
//	pending_review --reject-->    rejected          记录原因
//	approved       --unpublish--> unpublished       记录原因，取消推荐
//	rejected       --resubmit-->  pending_review    清空原因
//	unpublished    --resubmit-->  pending_review    清空原因
//
// Apply 是纯函数，不做任何 I/O；Service 负责加载、持久化与事件发布。
package moderation

import (
	"strings"
	"time"

	"automarket/internal/shared/model"
)

// rule 单个审核动作的迁移规则
type rule struct {
	from        []model.ProductStatus
	to          model.ProductStatus
	adminOnly   bool
	needsReason bool
}

func (r rule) permits(s model.ProductStatus) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

var rules = map[model.ModerationAction]rule{
	model.ModerationActionSubmit: {
		from: []model.ProductStatus{model.ProductStatusDraft},
		to:   model.ProductStatusPendingReview,
	},
	model.ModerationActionApprove: {
		from:      []model.ProductStatus{model.ProductStatusPendingReview},
		to:        model.ProductStatusApproved,
		adminOnly: true,
	},
	model.ModerationActionReject: {
		from:        []model.ProductStatus{model.ProductStatusPendingReview},
		to:          model.ProductStatusRejected,
		adminOnly:   true,
		needsReason: true,
	},
	model.ModerationActionUnpublish: {
		from:        []model.ProductStatus{model.ProductStatusApproved},
		to:          model.ProductStatusUnpublished,
		adminOnly:   true,
		needsReason: true,
	},
	model.ModerationActionResubmit: {
		from: []model.ProductStatus{model.ProductStatusRejected, model.ProductStatusUnpublished},
		to:   model.ProductStatusPendingReview,
	},
}

// Actions 全部审核动作
var Actions = []model.ModerationAction{
	model.ModerationActionSubmit,
	model.ModerationActionApprove,
	model.ModerationActionReject,
	model.ModerationActionUnpublish,
	model.ModerationActionResubmit,
}

// Allowed 返回某状态下合法的动作（不考虑操作者）
func Allowed(from model.ProductStatus) []model.ModerationAction {
	var out []model.ModerationAction
	for _, a := range Actions {
		if rules[a].permits(from) {
			out = append(out, a)
		}
	}
	return out
}

// Target 返回动作的目标状态
func Target(action model.ModerationAction) (model.ProductStatus, bool) {
	r, ok := rules[action]
	return r.to, ok
}

// RequiresReason 动作是否必须附带原因
func RequiresReason(action model.ModerationAction) bool {
	return rules[action].needsReason
}

// checkReason 原因去除空白后不能为空
func checkReason(action model.ModerationAction, reason string) error {
	if !rules[action].needsReason {
		return nil
	}
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	return nil
}

// checkRole 不依赖商品数据的角色检查
func checkRole(action model.ModerationAction, actor Actor) error {
	r, ok := rules[action]
	if !ok {
		return &ValidationError{Field: "action", Message: "is unknown"}
	}
	switch actor.Role {
	case model.UserRoleAdmin:
		return nil
	case model.UserRoleVendor:
		if r.adminOnly {
			return unauthorized("admin role required to " + string(action))
		}
		return nil
	default:
		return unauthorized("role " + string(actor.Role) + " cannot moderate products")
	}
}

// Apply 计算一次审核动作后的商品状态
//
// 检查顺序：动作/原因校验 → 角色 → 所有权 → 状态迁移合法性。
func Apply(p model.Product, action model.ModerationAction, actor Actor, reason string, now time.Time) (model.Product, error) {
	r, ok := rules[action]
	if !ok {
		return p, &ValidationError{Field: "action", Message: "is unknown"}
	}
	if err := checkReason(action, reason); err != nil {
		return p, err
	}
	if err := checkRole(action, actor); err != nil {
		return p, err
	}
	if !actor.CanManage(&p) {
		return p, unauthorized("product belongs to another vendor")
	}
	if !r.permits(p.Status) {
		return p, &TransitionError{Action: action, Current: p.Status}
	}

	next := p
	next.Status = r.to
	next.RejectionReason = nil
	if r.needsReason {
		rs := reason
		next.RejectionReason = &rs
	}
	// 离开 approved 时取消推荐
	if p.Status == model.ProductStatusApproved && r.to != model.ProductStatusApproved {
		next.Featured = false
	}
	next.UpdatedAt = now
	return next, nil
}

// Consistent 检查 rejection_reason 与状态的一致性
func Consistent(p model.Product) bool {
	if p.Featured && p.Status != model.ProductStatusApproved {
		return false
	}
	return (p.RejectionReason != nil) == p.Status.CarriesReason()
}
