package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
)

// ============================================================================
// ModerationStore
// ============================================================================

// TransitionProductStatus 条件更新商品状态
//
// 单机 MongoDB 不支持多文档事务：先写审核记录，再做带状态条件的更新；
// 条件未命中时删除刚写入的记录并返回 storage.ErrConflict。
func (s *Store) TransitionProductStatus(ctx context.Context, t *model.StatusTransition) error {
	if t.Event != nil {
		if err := insertOne(ctx, s.col(ColModerationEvents), t.Event); err != nil {
			return err
		}
	}

	res, err := s.col(ColProducts).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: t.ProductID}, {Key: "status", Value: t.From}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: t.To},
			{Key: "rejection_reason", Value: t.RejectionReason},
			{Key: "featured", Value: t.Featured},
			{Key: "updated_at", Value: t.UpdatedAt},
		}}},
	)
	if err == nil && res.MatchedCount > 0 {
		return nil
	}

	if t.Event != nil {
		if derr := deleteByID(ctx, s.col(ColModerationEvents), t.Event.ID); derr != nil {
			s.logger.Errorw("mongostore: failed to remove orphan moderation event",
				"event_id", t.Event.ID, "product_id", t.ProductID, "error", derr)
		}
	}
	if err != nil {
		return wrapError(err)
	}
	return storage.ErrConflict
}

// ListModerationEvents 按时间顺序列出商品的审核记录
func (s *Store) ListModerationEvents(ctx context.Context, productID int64, limit int) ([]*model.ModerationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	return findMany[model.ModerationEvent](ctx, s.col(ColModerationEvents),
		bson.D{{Key: "product_id", Value: productID}}, opts)
}
