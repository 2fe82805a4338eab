package moderation

import (
	"automarket/internal/shared/model"
	"automarket/internal/shared/validation"
)

// Request 审核请求（封闭联合类型，每个动作一个结构体）
type Request interface {
	Action() model.ModerationAction
	Target() int64
	reason() string
}

// SubmitRequest draft → pending_review
type SubmitRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// ApproveRequest pending_review → approved
type ApproveRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// RejectRequest pending_review → rejected
type RejectRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,notblank"`
}

// UnpublishRequest approved → unpublished
type UnpublishRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,notblank"`
}

// ResubmitRequest rejected/unpublished → pending_review
type ResubmitRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

func (r SubmitRequest) Action() model.ModerationAction { return model.ModerationActionSubmit }
func (r SubmitRequest) Target() int64                  { return r.ProductID }
func (r SubmitRequest) reason() string                 { return "" }

func (r ApproveRequest) Action() model.ModerationAction { return model.ModerationActionApprove }
func (r ApproveRequest) Target() int64                  { return r.ProductID }
func (r ApproveRequest) reason() string                 { return "" }

func (r RejectRequest) Action() model.ModerationAction { return model.ModerationActionReject }
func (r RejectRequest) Target() int64                  { return r.ProductID }
func (r RejectRequest) reason() string                 { return r.Reason }

func (r UnpublishRequest) Action() model.ModerationAction { return model.ModerationActionUnpublish }
func (r UnpublishRequest) Target() int64                  { return r.ProductID }
func (r UnpublishRequest) reason() string                 { return r.Reason }

func (r ResubmitRequest) Action() model.ModerationAction { return model.ModerationActionResubmit }
func (r ResubmitRequest) Target() int64                  { return r.ProductID }
func (r ResubmitRequest) reason() string                 { return "" }

// NewRequest 根据动作名构造请求，HTTP 层使用
func NewRequest(action model.ModerationAction, productID int64, reason string) (Request, error) {
	switch action {
	case model.ModerationActionSubmit:
		return SubmitRequest{ProductID: productID}, nil
	case model.ModerationActionApprove:
		return ApproveRequest{ProductID: productID}, nil
	case model.ModerationActionReject:
		return RejectRequest{ProductID: productID, Reason: reason}, nil
	case model.ModerationActionUnpublish:
		return UnpublishRequest{ProductID: productID, Reason: reason}, nil
	case model.ModerationActionResubmit:
		return ResubmitRequest{ProductID: productID}, nil
	}
	return nil, &ValidationError{Field: "action", Message: "is unknown"}
}

// Validate 边界校验
func Validate(req Request) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "is required"}
	}
	if fe := validation.Struct(req); fe != nil {
		return &ValidationError{Field: fe.Field, Message: fe.Message}
	}
	return nil
}
