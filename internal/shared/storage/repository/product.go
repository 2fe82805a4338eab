package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
	"automarket/internal/shared/storage/dbutil"
)

const productColumns = `id, vendor_id, name, sku, description, brand, category, price, stock,
	image_key, status, rejection_reason, featured, created_at, updated_at`

// CreateProduct 创建商品，回填自增 ID
func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.Status == "" {
		p.Status = model.ProductStatusDraft
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO products (vendor_id, name, sku, description, brand, category, price, stock,
			image_key, status, rejection_reason, featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`),
		p.VendorID, p.Name, p.SKU, p.Description, p.Brand, p.Category, p.Price.String(), p.Stock,
		p.ImageKey, p.Status, p.RejectionReason, p.Featured, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct 获取商品，不存在返回 (nil, nil)
func (s *Store) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+productColumns+` FROM products WHERE id = $1`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts 按过滤条件列出商品
func (s *Store) ListProducts(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	filter.Normalize()

	var w dbutil.Where
	if len(filter.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		args := make([]interface{}, len(filter.Statuses))
		for i, st := range filter.Statuses {
			args[i] = st
		}
		w.Add("status IN ("+marks+")", args...)
	}
	if filter.VendorID != nil {
		w.Add("vendor_id = ?", *filter.VendorID)
	}
	if filter.Category != "" {
		w.Add("category = ?", filter.Category)
	}
	if filter.Featured != nil {
		w.Add("featured = ?", *filter.Featured)
	}

	order := " ORDER BY created_at DESC, id DESC"
	if filter.Oldest {
		order = " ORDER BY updated_at ASC, id ASC"
	}
	next := w.Next()
	query := `SELECT ` + productColumns + ` FROM products` + w.Clause() + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", next, next+1)
	args := append(w.Args(), filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// UpdateProduct 更新商品可编辑字段（不含状态）
func (s *Store) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE products SET name = $1, sku = $2, description = $3, brand = $4, category = $5,
			price = $6, stock = $7, updated_at = $8
		WHERE id = $9`),
		p.Name, p.SKU, p.Description, p.Brand, p.Category, p.Price.String(), p.Stock, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return affected(res)
}

// DeleteProduct 删除商品（审核记录级联删除）
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM products WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return affected(res)
}

// SetProductFeatured 设置推荐标记，只有 approved 商品可以推荐
func (s *Store) SetProductFeatured(ctx context.Context, id int64, featured bool) error {
	query := `UPDATE products SET featured = ` + s.dialect.BooleanLiteral(featured) + `, updated_at = $1 WHERE id = $2`
	if featured {
		query += ` AND status = 'approved'`
	}
	res, err := s.db.ExecContext(ctx, s.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set featured on product %d: %w", id, err)
	}
	if err := affected(res); err != nil {
		if !featured {
			return err
		}
		p, gerr := s.GetProduct(ctx, id)
		if gerr != nil {
			return gerr
		}
		if p == nil {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}

// SetProductImage 设置或清除商品图片对象键
func (s *Store) SetProductImage(ctx context.Context, id int64, key *string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE products SET image_key = $1, updated_at = $2 WHERE id = $3`),
		key, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set image on product %d: %w", id, err)
	}
	return affected(res)
}

func scanProduct(row scanner) (*model.Product, error) {
	p := &model.Product{}
	var imageKey, reason sql.NullString
	if err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.SKU, &p.Description, &p.Brand, &p.Category,
		&p.Price, &p.Stock, &imageKey, &p.Status, &reason, &p.Featured, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if imageKey.Valid {
		p.ImageKey = &imageKey.String
	}
	if reason.Valid {
		p.RejectionReason = &reason.String
	}
	return p, nil
}

func scanProducts(rows *sql.Rows) ([]*model.Product, error) {
	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
