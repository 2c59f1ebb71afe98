package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// コミット中に在庫が他の購入に取られていた場合の競合
var errStockConflict = errors.New("stock conflict")

type commitStage int

const (
	stageInit commitStage = iota
	stageBegun
	stageStockDecremented
	stagePurchaseCreated
	stageCartCleared
	stageDone
)

// ステージ順を守らない呼び出しはプログラミングエラー
func errCommitterMisuse() error {
	return NewHTTPError(http.StatusBadRequest, "invalid checkout commit sequence")
}

// 購入確定の状態機械。
// Begin → DecrementStock → CreatePurchase → ClearCart → Commit。
// 途中で失敗したら必ずRollbackを呼ぶこと。
type purchaseCommitter struct {
	tm     repo.TransactionManager
	handle repo.TxHandle
	stage  commitStage
}

func newPurchaseCommitter(tm repo.TransactionManager) *purchaseCommitter {
	return &purchaseCommitter{tm: tm, stage: stageInit}
}

func (c *purchaseCommitter) Begin(ctx context.Context) error {
	if c.stage != stageInit {
		return errCommitterMisuse()
	}

	h, err := c.tm.Begin(ctx)
	if err != nil {
		return err
	}

	c.handle = h
	c.stage = stageBegun
	return nil
}

// トランザクション内で在庫を減らす。
// スナップショットではなく現在の行に対する条件付きUPDATEなので、
// 同時購入で在庫が足りなくなっていたらここで失敗する（在庫は絶対に負にならない）。
func (c *purchaseCommitter) DecrementStock(ctx context.Context, lines []snapshotLine) error {
	if c.stage != stageBegun {
		return errCommitterMisuse()
	}

	inv := c.handle.Repos().Inventory()
	for _, ln := range lines {
		ok, err := inv.DecreaseStockIfEnough(ctx, ln.ProductID, ln.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return errStockConflict
		}
	}

	c.stage = stageStockDecremented
	return nil
}

// 購入レコード作成。
// 配送先住所が必須。productIDs/unitPrices/quantitiesは同じ長さの並行リストで、
// 同じ添字が同じ明細を指す。
func (c *purchaseCommitter) CreatePurchase(
	ctx context.Context,
	user model.User,
	couponCode string,
	breakdown PriceBreakdown,
	productIDs []int64,
	unitPrices []int64,
	quantities []int64,
) (int64, error) {
	if c.stage != stageStockDecremented {
		return 0, errCommitterMisuse()
	}

	if strings.TrimSpace(user.Address) == "" {
		return 0, NewHTTPError(http.StatusBadRequest, "delivery address required")
	}
	if len(productIDs) == 0 {
		return 0, NewHTTPError(http.StatusBadRequest, "empty product list")
	}
	if len(unitPrices) != len(productIDs) || len(quantities) != len(productIDs) {
		return 0, NewHTTPError(http.StatusBadRequest, "mismatched purchase lists")
	}

	now := time.Now()
	purchaseID, err := c.handle.Repos().Purchases().Create(ctx, model.Purchase{
		UserID:              user.ID,
		CouponCode:          couponCode,
		TotalBeforeDiscount: breakdown.TotalBeforeDiscount,
		TotalAfterDiscount:  breakdown.TotalAfterDiscount,
		ShippingCost:        breakdown.ShippingCost,
		FinalTotal:          breakdown.FinalTotal,
		Address:             user.Address,
		PaymentStatus:       model.PaymentStatusPaid,
		FulfillmentStatus:   model.FulfillmentStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return 0, err
	}

	items := make([]model.PurchaseItem, 0, len(productIDs))
	for i := range productIDs {
		items = append(items, model.PurchaseItem{
			ProductID: productIDs[i],
			UnitPrice: unitPrices[i],
			Quantity:  quantities[i],
			Position:  i,
			CreatedAt: now,
		})
	}

	if err := c.handle.Repos().Purchases().CreateItems(ctx, purchaseID, items); err != nil {
		return 0, err
	}

	c.stage = stagePurchaseCreated
	return purchaseID, nil
}

// カートをCHECKED_OUTにして明細を消す
func (c *purchaseCommitter) ClearCart(ctx context.Context, cartID int64) error {
	if c.stage != stagePurchaseCreated {
		return errCommitterMisuse()
	}

	if err := c.handle.Repos().Carts().UpdateStatus(ctx, cartID, model.CartStatusCheckedOut); err != nil {
		return err
	}
	if err := c.handle.Repos().Carts().Clear(ctx, cartID); err != nil {
		return err
	}

	c.stage = stageCartCleared
	return nil
}

// コミットに失敗したらロールバックを試みてからエラーを返す
func (c *purchaseCommitter) Commit() error {
	if c.stage != stageCartCleared {
		return errCommitterMisuse()
	}

	if err := c.handle.Commit(); err != nil {
		_ = c.handle.Rollback()
		return err
	}

	c.stage = stageDone
	return nil
}

func (c *purchaseCommitter) Rollback() error {
	if c.handle == nil {
		return errCommitterMisuse()
	}
	return c.handle.Rollback()
}
