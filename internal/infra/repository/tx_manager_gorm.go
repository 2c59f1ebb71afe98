package repository

import (
	"context"

	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products  repo.ProductRepository
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	purchases repo.PurchaseRepository
	inventory repo.InventoryRepository
}

func (r *txReposGorm) Products() repo.ProductRepository   { return r.products }
func (r *txReposGorm) Carts() repo.CartRepository         { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository { return r.cartItems }
func (r *txReposGorm) Purchases() repo.PurchaseRepository { return r.purchases }
func (r *txReposGorm) Inventory() repo.InventoryRepository { return r.inventory }

type txHandleGorm struct {
	tx       *gorm.DB
	repos    *txReposGorm
	finished bool
}

func (h *txHandleGorm) Repos() repo.TxRepos { return h.repos }

func (h *txHandleGorm) Commit() error {
	if h.finished {
		return gorm.ErrInvalidTransaction
	}
	h.finished = true
	return h.tx.Commit().Error
}

// Commit/Rollback決着後に呼んでもno-op
func (h *txHandleGorm) Rollback() error {
	if h.finished {
		return nil
	}
	h.finished = true
	return h.tx.Rollback().Error
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) Begin(ctx context.Context) (repo.TxHandle, error) {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	//repoはtxを持ったDBで作り直す
	repos := &txReposGorm{
		products:  NewProductGormRepository(tx),
		carts:     NewCartGormRepository(tx),
		cartItems: NewCartItemGormRepository(tx),
		purchases: NewPurchaseGormRepository(tx),
		inventory: NewInventoryGormRepository(tx),
	}

	return &txHandleGorm{tx: tx, repos: repos}, nil
}
