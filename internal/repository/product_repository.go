package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// GET /products の検索条件
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	MinPrice   *int64
	MaxPrice   *int64
	Sort       string // "new" | "price_asc" | "price_desc"
}

type ProductRepository interface {
	// 承認済み商品のみ
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)

	FindByID(ctx context.Context, productID int64) (model.Product, error)

	// カートのスナップショット取得用。見つかったものだけ返す
	FindByIDs(ctx context.Context, productIDs []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	DeleteByID(ctx context.Context, productID int64) error

	// 承認フラグの切り替え
	SetApproval(ctx context.Context, productID int64, approved bool) error
}
