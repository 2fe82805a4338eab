package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
	"automarket/internal/shared/storage/dbutil"
)

const userColumns = `id, email, name, password_hash, role, status, store_name, created_at, updated_at`

// CreateUser 创建用户，邮箱重复返回 storage.ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
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
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO users (email, name, password_hash, role, status, store_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`),
		user.Email, user.Name, user.PasswordHash, user.Role, user.Status, user.StoreName,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail 通过邮箱查找用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE email = $1`), email)
	return scanUserRow(row)
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return scanUserRow(row)
}

// UpdateUserPassword 更新用户密码
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`),
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// UpdateUserRole 更新用户角色
func (s *Store) UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`),
		role, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// UpdateUserStatus 封禁/解封用户
func (s *Store) UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`),
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// ListUsers 列出用户
func (s *Store) ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	var w dbutil.Where
	if filter.Role != "" {
		w.Add("role = ?", filter.Role)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+userColumns+` FROM users`+w.Clause()+` ORDER BY id ASC`), w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUserRow(row *sql.Row) (*model.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func scanUser(row scanner) (*model.User, error) {
	u := &model.User{}
	var storeName sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Status,
		&storeName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if storeName.Valid {
		u.StoreName = &storeName.String
	}
	return u, nil
}
