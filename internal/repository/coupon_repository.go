package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type CouponRepository interface {
	// 有効なクーポンをコードで1件取得。無ければErrNotFound
	FindActiveByCode(ctx context.Context, code string) (model.Coupon, error)

	List(ctx context.Context) ([]model.Coupon, error)
	Create(ctx context.Context, c model.Coupon) (model.Coupon, error)

	// 無効化/再有効化
	SetActive(ctx context.Context, couponID int64, active bool) error
}
