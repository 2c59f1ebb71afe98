package usecase

import (
	"context"
	"fmt"
	"net/http"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 金額内訳。
// final_total = total_after_discount + shipping_cost が常に成り立つ。
type PriceBreakdown struct {
	TotalBeforeDiscount int64 `json:"total_before_discount"`
	TotalAfterDiscount  int64 `json:"total_after_discount"`
	ShippingCost        int64 `json:"shipping_cost"`
	FinalTotal          int64 `json:"final_total"`
}

// パイプライン開始時点の商品スナップショット。
// 行ロックは取らないので、コミット時に在庫は必ず再検証する。
type snapshotLine struct {
	ProductID      int64
	Title          string
	UnitPrice      int64
	Quantity       int64
	Approved       bool
	AvailableStock int64
	CategoryID     int64
}

// ステージ間で受け渡す状態。各ステージが値を書き換えて次に渡す。
type checkoutState struct {
	user      model.User
	cartID    int64
	lines     []snapshotLine
	coupon    *model.Coupon
	breakdown PriceBreakdown

	//コミット後にだけ入る
	purchaseID int64
}

// カートのスナップショットを取得する。
// カートが空なら404（プレビューも購入も空カートは不正な入力）。
func (u *CheckoutUsecase) loadCart(ctx context.Context, userID int64) (checkoutState, error) {
	var st checkoutState

	user, err := u.users.FindByID(ctx, userID)
	if err == repo.ErrNotFound {
		return st, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return st, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	st.user = user

	cart, err := u.carts.FindActiveByUserID(ctx, userID)
	if err == repo.ErrNotFound {
		return st, NewHTTPError(http.StatusNotFound, "cart is empty")
	}
	if err != nil {
		return st, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	st.cartID = cart.ID

	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return st, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if len(items) == 0 {
		return st, NewHTTPError(http.StatusNotFound, "cart is empty")
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := u.products.FindByIDs(ctx, ids)
	if err != nil {
		return st, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	st.lines = make([]snapshotLine, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			//商品が消えている（削除済み）
			return st, NewHTTPError(http.StatusGone, fmt.Sprintf("product %d is no longer available", it.ProductID))
		}

		st.lines = append(st.lines, snapshotLine{
			ProductID:      p.ID,
			Title:          p.Title,
			UnitPrice:      p.Price,
			Quantity:       it.Quantity,
			Approved:       p.IsApproved,
			AvailableStock: p.Stock,
			CategoryID:     p.CategoryID,
		})
	}

	return st, nil
}

// 承認チェック。全明細が承認済み商品でなければならない
func (st checkoutState) validateApproved() error {
	for _, ln := range st.lines {
		if !ln.Approved {
			return NewHTTPError(http.StatusGone, fmt.Sprintf("product %d is no longer available", ln.ProductID))
		}
	}
	return nil
}

// 在庫チェック（スナップショット時点）。
// コミット時に条件付きUPDATEで再検証されるので、ここは早期失敗のための点検。
func (st checkoutState) validateStock() error {
	for _, ln := range st.lines {
		if ln.Quantity > ln.AvailableStock {
			return NewHTTPError(http.StatusGone, fmt.Sprintf("insufficient stock for product %d", ln.ProductID))
		}
	}
	return nil
}

// 割引前合計 = Σ(単価×数量)。スナップショット価格を使う
func (st checkoutState) calcBasePrice() checkoutState {
	var total int64 = 0
	for _, ln := range st.lines {
		total += ln.UnitPrice * ln.Quantity
	}
	st.breakdown.TotalBeforeDiscount = total
	return st
}

// クーポン解決。
// コード未指定は割引なし。一致しないコードも「クーポンなし」として黙って無視する
// （他の不正参照は失敗するのにクーポンだけ違う、元仕様から引き継いだ挙動）。
func (u *CheckoutUsecase) findCoupon(ctx context.Context, st checkoutState, code string) (checkoutState, error) {
	if code == "" {
		return st, nil
	}

	c, err := u.coupons.FindActiveByCode(ctx, code)
	if err == repo.ErrNotFound {
		return st, nil
	}
	if err != nil {
		return st, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	st.coupon = &c
	return st, nil
}

// 割引適用＋送料加算。
// total_after = total_before - total_before*discount/100（クーポンなしは同額）
func (st checkoutState) calcFinalPrice(shippingCost int64) checkoutState {
	base := st.breakdown.TotalBeforeDiscount

	after := base
	if st.coupon != nil {
		after = base - base*st.coupon.DiscountPercentage/100
	}

	st.breakdown.TotalAfterDiscount = after
	st.breakdown.ShippingCost = shippingCost
	st.breakdown.FinalTotal = after + shippingCost
	return st
}

func (st checkoutState) couponCode() string {
	if st.coupon == nil {
		return ""
	}
	return st.coupon.Code
}
