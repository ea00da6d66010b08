// Package catalog resolves items to their listing and shop for order placement.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skshopping/shop-backend/pkg/db/models"
)

// ItemWithShop is an item row joined with the shop that sells it.
type ItemWithShop struct {
	models.Item
	ShopID uuid.UUID
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ItemsWithShop loads the requested items keyed by id. Unknown ids are absent from the map.
func (r *Repository) ItemsWithShop(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ItemWithShop, error) {
	out := make(map[uuid.UUID]ItemWithShop, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []ItemWithShop
	err := r.db.WithContext(ctx).
		Table("items").
		Select("items.*, listings.shop_id AS shop_id").
		Joins("JOIN listings ON listings.id = items.listing_id").
		Where("items.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// LockItems takes FOR UPDATE locks on the item rows in id order, so two carts
// that overlap always lock in the same sequence. It must run inside a transaction.
func (r *Repository) LockItems(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Item
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// Shop returns nil when the shop does not exist.
func (r *Repository) Shop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// ItemsByID loads plain items for rendering.
func (r *Repository) ItemsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}
