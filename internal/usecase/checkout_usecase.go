package usecase

import (
	"context"
	"log"
	"net/http"
	"time"

	repo "marketplace/internal/repository"

	"github.com/google/uuid"
)

// コミット成功後の観測データ。ベストエフォートで記録する
type PurchaseMetrics struct {
	Date               time.Time
	UserID             int64
	FinalTotal         int64
	CouponCode         string
	DiscountAmount     int64
	UnitsByCategory    map[int64]int64
	DistinctCategories int
}

// メトリクス送信先。失敗しても購入結果に影響させないこと
type MetricsRecorder interface {
	RecordPurchase(m PurchaseMetrics)
}

// プレビューと購入で同じ形を返す。
// 購入のときだけ purchase_id が入る
type CheckoutItemOutput struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutOutput struct {
	PurchaseID *int64 `json:"purchase_id,omitempty"`

	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`

	TotalBeforeDiscount int64 `json:"total_before_discount"`
	TotalAfterDiscount  int64 `json:"total_after_discount"`
	ShippingCost        int64 `json:"shipping_cost"`
	FinalTotal          int64 `json:"final_total"`

	CouponCode string `json:"coupon_code,omitempty"`
	Address    string `json:"address"`

	PaymentStatus     string `json:"payment_status"`
	FulfillmentStatus string `json:"fulfillment_status"`

	ProductIDs []int64              `json:"product_ids"`
	Items      []CheckoutItemOutput `json:"items"`
}

// チェックアウトパイプライン。
// Preview: スナップショット→検証→価格計算（副作用なし）。
// Buy: 同じ段を通ったあと、単一トランザクションで在庫減算・購入作成・カート削除。
type CheckoutUsecase struct {
	users     repo.UserRepository
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	coupons   repo.CouponRepository
	tx        repo.TransactionManager
	metrics   MetricsRecorder

	shippingCost int64
}

func NewCheckoutUsecase(
	users repo.UserRepository,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	coupons repo.CouponRepository,
	tx repo.TransactionManager,
	metrics MetricsRecorder,
	shippingCost int64,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		users:        users,
		carts:        carts,
		cartItems:    cartItems,
		products:     products,
		coupons:      coupons,
		tx:           tx,
		metrics:      metrics,
		shippingCost: shippingCost,
	}
}

// 読み取り専用パス（スナップショット→検証→価格計算）。
// PreviewとBuyの前半は完全に同じ
func (u *CheckoutUsecase) price(ctx context.Context, userID int64, couponCode string) (checkoutState, error) {
	st, err := u.loadCart(ctx, userID)
	if err != nil {
		return st, err
	}

	if err := st.validateApproved(); err != nil {
		return st, err
	}
	if err := st.validateStock(); err != nil {
		return st, err
	}

	st = st.calcBasePrice()

	st, err = u.findCoupon(ctx, st, couponCode)
	if err != nil {
		return st, err
	}

	st = st.calcFinalPrice(u.shippingCost)
	return st, nil
}

// Preview は価格計算だけ行う。何度呼んでも状態は変わらない
func (u *CheckoutUsecase) Preview(ctx context.Context, userID int64, couponCode string) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	st, err := u.price(ctx, userID, couponCode)
	if err != nil {
		return CheckoutOutput{}, err
	}

	return formatCheckout(st), nil
}

// Buy はカートを購入に変える。
// 在庫減算・購入作成・カート削除は全部成功か全部なかったことになるかのどちらか
func (u *CheckoutUsecase) Buy(ctx context.Context, userID int64, couponCode string) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	st, err := u.price(ctx, userID, couponCode)
	if err != nil {
		//検証段階の失敗。まだ何も書いていないのでrollback不要
		return CheckoutOutput{}, err
	}

	c := newPurchaseCommitter(u.tx)

	if err := c.Begin(ctx); err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := c.DecrementStock(ctx, st.lines); err != nil {
		_ = c.Rollback()
		return CheckoutOutput{}, u.commitFailure(userID, err)
	}

	productIDs, unitPrices, quantities := st.parallelLists()

	purchaseID, err := c.CreatePurchase(ctx, st.user, st.couponCode(), st.breakdown, productIDs, unitPrices, quantities)
	if err != nil {
		_ = c.Rollback()
		return CheckoutOutput{}, u.commitFailure(userID, err)
	}
	st.purchaseID = purchaseID

	if err := c.ClearCart(ctx, st.cartID); err != nil {
		_ = c.Rollback()
		return CheckoutOutput{}, u.commitFailure(userID, err)
	}

	if err := c.Commit(); err != nil {
		return CheckoutOutput{}, u.commitFailure(userID, err)
	}

	//コミット後のみ。失敗しても購入は成立している
	u.recordMetrics(st)

	return formatCheckout(st), nil
}

// コミット段階の失敗をまとめる。
// 分類済みのエラー（住所なし等）はそのまま返し、
// それ以外は詳細をトレースID付きでログに残して「リトライしてください」だけ返す。
// ストレージ層の内部事情を呼び出し側に漏らさない
func (u *CheckoutUsecase) commitFailure(userID int64, err error) error {
	if he, ok := AsHTTPError(err); ok {
		return he
	}

	traceID := uuid.NewString()
	log.Printf("checkout commit failed trace_id=%s user_id=%d err=%v", traceID, userID, err)
	return NewHTTPError(http.StatusBadRequest, "checkout failed, please retry")
}

// メトリクスはベストエフォート。ここで何が起きても購入は巻き戻らない
func (u *CheckoutUsecase) recordMetrics(st checkoutState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("checkout metrics panic user_id=%d: %v", st.user.ID, r)
		}
	}()

	units := make(map[int64]int64, len(st.lines))
	for _, ln := range st.lines {
		units[ln.CategoryID] += ln.Quantity
	}

	u.metrics.RecordPurchase(PurchaseMetrics{
		Date:               time.Now(),
		UserID:             st.user.ID,
		FinalTotal:         st.breakdown.FinalTotal,
		CouponCode:         st.couponCode(),
		DiscountAmount:     st.breakdown.TotalBeforeDiscount - st.breakdown.TotalAfterDiscount,
		UnitsByCategory:    units,
		DistinctCategories: len(units),
	})
}

// 並行リスト（同じ添字が同じ明細）
func (st checkoutState) parallelLists() (ids []int64, prices []int64, qtys []int64) {
	ids = make([]int64, 0, len(st.lines))
	prices = make([]int64, 0, len(st.lines))
	qtys = make([]int64, 0, len(st.lines))

	for _, ln := range st.lines {
		ids = append(ids, ln.ProductID)
		prices = append(prices, ln.UnitPrice)
		qtys = append(qtys, ln.Quantity)
	}
	return ids, prices, qtys
}

func formatCheckout(st checkoutState) CheckoutOutput {
	out := CheckoutOutput{
		UserID:   st.user.ID,
		UserName: st.user.Name,

		TotalBeforeDiscount: st.breakdown.TotalBeforeDiscount,
		TotalAfterDiscount:  st.breakdown.TotalAfterDiscount,
		ShippingCost:        st.breakdown.ShippingCost,
		FinalTotal:          st.breakdown.FinalTotal,

		CouponCode: st.couponCode(),
		Address:    st.user.Address,

		PaymentStatus:     "PAID",
		FulfillmentStatus: "PENDING",
	}

	out.ProductIDs = make([]int64, 0, len(st.lines))
	out.Items = make([]CheckoutItemOutput, 0, len(st.lines))
	for _, ln := range st.lines {
		out.ProductIDs = append(out.ProductIDs, ln.ProductID)
		out.Items = append(out.Items, CheckoutItemOutput{
			ProductID: ln.ProductID,
			Title:     ln.Title,
			UnitPrice: ln.UnitPrice,
			Quantity:  ln.Quantity,
		})
	}

	if st.purchaseID > 0 {
		id := st.purchaseID
		out.PurchaseID = &id
	}

	return out
}
