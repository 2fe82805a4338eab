package repository

import (
	"context"
	"database/sql"
	"fmt"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
)

// TransitionProductStatus 条件更新商品状态并写入审核记录
//
// 只有当前状态仍为 t.From 时才会更新；否则返回 storage.ErrConflict，事务回滚。
func (s *Store) TransitionProductStatus(ctx context.Context, t *model.StatusTransition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE products SET status = $1, rejection_reason = $2, featured = $3, updated_at = $4
			WHERE id = $5 AND status = $6`),
			t.To, t.RejectionReason, t.Featured, t.UpdatedAt, t.ProductID, t.From,
		)
		if err != nil {
			return fmt.Errorf("update product %d status: %w", t.ProductID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrConflict
		}
		if t.Event == nil {
			return nil
		}
		return s.insertModerationEvent(ctx, tx, t.Event)
	})
}

func (s *Store) insertModerationEvent(ctx context.Context, tx *sql.Tx, e *model.ModerationEvent) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO moderation_events (id, product_id, vendor_id, action, from_status, to_status,
			reason, actor_id, actor_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
		e.ID, e.ProductID, e.VendorID, e.Action, e.FromStatus, e.ToStatus,
		e.Reason, e.ActorID, e.ActorRole, e.CreatedAt,
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert moderation event: %w", err)
	}
	return nil
}

// ListModerationEvents 按时间顺序列出商品的审核记录
func (s *Store) ListModerationEvents(ctx context.Context, productID int64, limit int) ([]*model.ModerationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, product_id, vendor_id, action, from_status, to_status, reason, actor_id, actor_role, created_at
		FROM moderation_events WHERE product_id = $1
		ORDER BY created_at ASC LIMIT $2`), productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation events: %w", err)
	}
	defer rows.Close()

	var events []*model.ModerationEvent
	for rows.Next() {
		e := &model.ModerationEvent{}
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.ProductID, &e.VendorID, &e.Action, &e.FromStatus, &e.ToStatus,
			&reason, &e.ActorID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			e.Reason = &reason.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
