package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type CartRepository interface {
	// ユーザーのACTIVEカートを取得し、無ければ作成
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)

	// ユーザーのACTIVEカートを取得。無ければErrNotFound
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)

	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error

	// 指定カートの明細を全削除
	Clear(ctx context.Context, cartID int64) error
}
