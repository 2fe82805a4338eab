package model

import "time"

// ModerationAction 审核动作
type ModerationAction string

const (
	ModerationActionSubmit    ModerationAction = "submit"
	ModerationActionApprove   ModerationAction = "approve"
	ModerationActionReject    ModerationAction = "reject"
	ModerationActionUnpublish ModerationAction = "unpublish"
	ModerationActionResubmit  ModerationAction = "resubmit"
)

// ModerationEvent 审核审计记录
//
// 与状态变更在同一事务中写入，并在提交后发布到事件总线。
type ModerationEvent struct {
	ID         string           `json:"id" bson:"_id" db:"id"`
	ProductID  int64            `json:"product_id" bson:"product_id" db:"product_id"`
	VendorID   int64            `json:"vendor_id" bson:"vendor_id" db:"vendor_id"`
	Action     ModerationAction `json:"action" bson:"action" db:"action"`
	FromStatus ProductStatus    `json:"from_status" bson:"from_status" db:"from_status"`
	ToStatus   ProductStatus    `json:"to_status" bson:"to_status" db:"to_status"`
	Reason     *string          `json:"reason,omitempty" bson:"reason,omitempty" db:"reason"`
	ActorID    int64            `json:"actor_id" bson:"actor_id" db:"actor_id"`
	ActorRole  UserRole         `json:"actor_role" bson:"actor_role" db:"actor_role"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at" db:"created_at"`
}

// StatusTransition 一次带条件的状态变更
//
// 存储层只在当前状态仍为 From 时才应用变更，否则返回 storage.ErrConflict。
type StatusTransition struct {
	ProductID       int64
	From            ProductStatus
	To              ProductStatus
	RejectionReason *string
	Featured        bool
	UpdatedAt       time.Time
	Event           *ModerationEvent
}
