package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type PurchaseRepository interface {
	Create(ctx context.Context, p model.Purchase) (int64, error)

	// 明細の一括作成
	CreateItems(ctx context.Context, purchaseID int64, items []model.PurchaseItem) error

	FindByID(ctx context.Context, purchaseID int64) (model.Purchase, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Purchase, int64, error)
	ListItemsByPurchaseID(ctx context.Context, purchaseID int64) ([]model.PurchaseItem, error)

	// 支払い/配送ステータスの更新（キャンセル・返金）
	UpdateStatuses(ctx context.Context, purchaseID int64, payment model.PaymentStatus, fulfillment model.FulfillmentStatus) error
}
