package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error

	// emailで1件取得。無ければErrNotFound
	FindByEmail(ctx context.Context, email string) (model.User, error)

	FindByID(ctx context.Context, id int64) (model.User, error)

	// 配送先住所を更新
	UpdateAddress(ctx context.Context, userID int64, address string) error
}
