package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"automarket/internal/shared/model"
	"automarket/internal/shared/storage"
)

// productDoc 商品文档，价格以 Decimal128 存储
type productDoc struct {
	ID              int64               `bson:"_id"`
	VendorID        int64               `bson:"vendor_id"`
	Name            string              `bson:"name"`
	SKU             string              `bson:"sku"`
	Description     string              `bson:"description"`
	Brand           string              `bson:"brand"`
	Category        string              `bson:"category"`
	Price           bson.Decimal128     `bson:"price"`
	Stock           int                 `bson:"stock"`
	ImageKey        *string             `bson:"image_key"`
	Status          model.ProductStatus `bson:"status"`
	RejectionReason *string             `bson:"rejection_reason"`
	Featured        bool                `bson:"featured"`
	CreatedAt       time.Time           `bson:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at"`
}

func toProductDoc(p *model.Product) (*productDoc, error) {
	price, err := bson.ParseDecimal128(p.Price.String())
	if err != nil {
		return nil, fmt.Errorf("mongostore: price %s: %w", p.Price, err)
	}
	return &productDoc{
		ID:              p.ID,
		VendorID:        p.VendorID,
		Name:            p.Name,
		SKU:             p.SKU,
		Description:     p.Description,
		Brand:           p.Brand,
		Category:        p.Category,
		Price:           price,
		Stock:           p.Stock,
		ImageKey:        p.ImageKey,
		Status:          p.Status,
		RejectionReason: p.RejectionReason,
		Featured:        p.Featured,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

func (d *productDoc) toModel() (*model.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("mongostore: product %d price: %w", d.ID, err)
	}
	return &model.Product{
		ID:              d.ID,
		VendorID:        d.VendorID,
		Name:            d.Name,
		SKU:             d.SKU,
		Description:     d.Description,
		Brand:           d.Brand,
		Category:        d.Category,
		Price:           price,
		Stock:           d.Stock,
		ImageKey:        d.ImageKey,
		Status:          d.Status,
		RejectionReason: d.RejectionReason,
		Featured:        d.Featured,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// ============================================================================
// ProductStore
// ============================================================================

func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.Status == "" {
		p.Status = model.ProductStatusDraft
	}
	if (p.RejectionReason != nil) != p.Status.CarriesReason() {
		return fmt.Errorf("mongostore: rejection_reason does not match status %s", p.Status)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	id, err := s.nextID(ctx, ColProducts)
	if err != nil {
		return err
	}
	p.ID = id
	doc, err := toProductDoc(p)
	if err != nil {
		p.ID = 0
		return err
	}
	if err := insertOne(ctx, s.col(ColProducts), doc); err != nil {
		p.ID = 0
		return err
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	doc, err := findOne[productDoc](ctx, s.col(ColProducts), bson.D{{Key: "_id", Value: id}})
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

func (s *Store) ListProducts(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	filter.Normalize()

	q := bson.D{}
	if len(filter.Statuses) > 0 {
		q = append(q, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: filter.Statuses}}})
	}
	if filter.VendorID != nil {
		q = append(q, bson.E{Key: "vendor_id", Value: *filter.VendorID})
	}
	if filter.Category != "" {
		q = append(q, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.Featured != nil {
		q = append(q, bson.E{Key: "featured", Value: *filter.Featured})
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if filter.Oldest {
		sort = bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().SetSort(sort).SetSkip(int64(filter.Offset)).SetLimit(int64(filter.Limit))

	docs, err := findMany[productDoc](ctx, s.col(ColProducts), q, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *model.Product) error {
	price, err := bson.ParseDecimal128(p.Price.String())
	if err != nil {
		return fmt.Errorf("mongostore: price %s: %w", p.Price, err)
	}
	return updateFields(ctx, s.col(ColProducts), p.ID, bson.D{
		{Key: "name", Value: p.Name},
		{Key: "sku", Value: p.SKU},
		{Key: "description", Value: p.Description},
		{Key: "brand", Value: p.Brand},
		{Key: "category", Value: p.Category},
		{Key: "price", Value: price},
		{Key: "stock", Value: p.Stock},
		{Key: "updated_at", Value: p.UpdatedAt},
	})
}

// DeleteProduct 删除商品及其审核记录
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := deleteByID(ctx, s.col(ColProducts), id); err != nil {
		return err
	}
	_, err := s.col(ColModerationEvents).DeleteMany(ctx, bson.D{{Key: "product_id", Value: id}})
	return wrapError(err)
}

func (s *Store) SetProductFeatured(ctx context.Context, id int64, featured bool) error {
	filter := bson.D{{Key: "_id", Value: id}}
	if featured {
		filter = append(filter, bson.E{Key: "status", Value: model.ProductStatusApproved})
	}
	res, err := s.col(ColProducts).UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "featured", Value: featured},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if !featured {
		return storage.ErrNotFound
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

func (s *Store) SetProductImage(ctx context.Context, id int64, key *string) error {
	return updateFields(ctx, s.col(ColProducts), id, bson.D{
		{Key: "image_key", Value: key},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}
