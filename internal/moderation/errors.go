package moderation

import (
	"errors"
	"fmt"

	"automarket/internal/shared/model"
)

// 审核领域错误，HTTP 层据此映射状态码
var (
	// ErrNotFound 商品不存在
	ErrNotFound = errors.New("product not found")

	// ErrUnauthorized 操作者缺少角色或所有权
	ErrUnauthorized = errors.New("not authorized")

	// ErrValidation 请求字段缺失或非法
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition 当前状态不允许该操作
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError 字段校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError 非法状态迁移，携带商品当前状态
type TransitionError struct {
	Action  model.ModerationAction
	Current model.ProductStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s product in status %q", e.Action, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

func notFound(id int64) error {
	return fmt.Errorf("%w: id=%d", ErrNotFound, id)
}
