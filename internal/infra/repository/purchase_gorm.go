package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type PurchaseGormRepository struct {
	db *gorm.DB
}

// DI
func NewPurchaseGormRepository(db *gorm.DB) *PurchaseGormRepository {
	return &PurchaseGormRepository{db: db}
}

func (r *PurchaseGormRepository) Create(ctx context.Context, p model.Purchase) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

// 明細の一括作成
func (r *PurchaseGormRepository) CreateItems(ctx context.Context, purchaseID int64, items []model.PurchaseItem) error {
	if len(items) == 0 {
		return errors.New("empty purchase items")
	}

	for i := range items {
		items[i].PurchaseID = purchaseID
	}

	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *PurchaseGormRepository) FindByID(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	var p model.Purchase

	err := r.db.WithContext(ctx).
		Where("id = ?", purchaseID).
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Purchase{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Purchase{}, err
	}
	return p, nil
}

func (r *PurchaseGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Purchase, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Purchase
	offset := (page - 1) * limit
	if err := base.
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *PurchaseGormRepository) ListItemsByPurchaseID(ctx context.Context, purchaseID int64) ([]model.PurchaseItem, error) {
	var items []model.PurchaseItem

	if err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("position asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// 支払い/配送ステータスの更新
func (r *PurchaseGormRepository) UpdateStatuses(ctx context.Context, purchaseID int64, payment model.PaymentStatus, fulfillment model.FulfillmentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ?", purchaseID).
		Updates(map[string]interface{}{
			"payment_status":     payment,
			"fulfillment_status": fulfillment,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
