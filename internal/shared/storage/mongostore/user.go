package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	// 邮箱唯一性由唯一索引保证，先检查避免浪费 ID
	if existing, err := s.GetUserByEmail(ctx, user.Email); err != nil {
		return err
	} else if existing != nil {
		return storage.ErrDuplicate
	}
	id, err := s.nextID(ctx, ColUsers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}
	user.ID = id
	if err := insertOne(ctx, s.col(ColUsers), user); err != nil {
		user.ID = 0
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "role", Value: role},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	q := bson.D{}
	if filter.Role != "" {
		q = append(q, bson.E{Key: "role", Value: filter.Role})
	}
	if filter.Status != "" {
		q = append(q, bson.E{Key: "status", Value: filter.Status})
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return findMany[model.User](ctx, s.col(ColUsers), q, opts)
}
