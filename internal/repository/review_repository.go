package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type ReviewRepository interface {
	ListByProductID(ctx context.Context, productID int64) ([]model.Review, error)
	FindByID(ctx context.Context, reviewID int64) (model.Review, error)
	Create(ctx context.Context, r model.Review) (model.Review, error)
	DeleteByID(ctx context.Context, reviewID int64) error
}
