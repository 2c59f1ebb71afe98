package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"marketplace/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	s   *fakeStore
	mgr *fakeTxManager
	rec *captureMetrics
	uc  *CheckoutUsecase
}

// user1: 住所あり、カート11にwidget(2000円)×1。在庫5。SAVE10は10%OFF
func newCheckoutFixture() *checkoutFixture {
	s := newFakeStore()
	s.users[1] = model.User{ID: 1, Name: "buyer", Email: "buyer@example.com", Address: "1-2-3 Test St"}
	s.products[101] = model.Product{ID: 101, Title: "widget", Price: 2000, Stock: 5, IsApproved: true, CategoryID: 7}
	s.carts[1] = model.Cart{ID: 11, UserID: 1, Status: model.CartStatusActive}
	s.items[11] = []model.CartItem{{ID: 1, CartID: 11, ProductID: 101, Quantity: 1, UnitPriceSnapshot: 2000}}
	s.coupons["SAVE10"] = model.Coupon{ID: 1, Code: "SAVE10", DiscountPercentage: 10, IsActive: true}

	mgr := &fakeTxManager{s: s}
	rec := &captureMetrics{}
	uc := NewCheckoutUsecase(
		&fakeUserRepo{s: s}, &fakeCartRepo{s: s}, &fakeCartItemRepo{s: s},
		&fakeProductRepo{s: s}, &fakeCouponRepo{s: s}, mgr, rec, 1000,
	)
	return &checkoutFixture{s: s, mgr: mgr, rec: rec, uc: uc}
}

func requireHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, want, he.Status)
}

func TestPreview_NoCoupon(t *testing.T) {
	f := newCheckoutFixture()

	out, err := f.uc.Preview(context.Background(), 1, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), out.TotalBeforeDiscount)
	assert.Equal(t, int64(2000), out.TotalAfterDiscount)
	assert.Equal(t, int64(1000), out.ShippingCost)
	assert.Equal(t, int64(3000), out.FinalTotal)
	assert.Empty(t, out.CouponCode)
	assert.Nil(t, out.PurchaseID)
	assert.Equal(t, []int64{101}, out.ProductIDs)
	assert.Equal(t, "PAID", out.PaymentStatus)
	assert.Equal(t, "PENDING", out.FulfillmentStatus)
}

func TestPreview_WithCoupon(t *testing.T) {
	f := newCheckoutFixture()

	out, err := f.uc.Preview(context.Background(), 1, "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), out.TotalBeforeDiscount)
	assert.Equal(t, int64(1800), out.TotalAfterDiscount)
	assert.Equal(t, int64(2800), out.FinalTotal)
	assert.Equal(t, "SAVE10", out.CouponCode)
}

// 存在しない/無効なコードは「クーポンなし」として黙って無視する
func TestPreview_UnknownCouponIgnored(t *testing.T) {
	f := newCheckoutFixture()

	out, err := f.uc.Preview(context.Background(), 1, "NOPE")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), out.TotalAfterDiscount)
	assert.Equal(t, int64(3000), out.FinalTotal)
	assert.Empty(t, out.CouponCode)
}

func TestPreview_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()

	//カート自体がない
	delete(f.s.carts, 1)
	_, err := f.uc.Preview(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusNotFound)

	//カートはあるが明細ゼロ
	f = newCheckoutFixture()
	f.s.items[11] = nil
	_, err = f.uc.Preview(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusNotFound)
}

func TestPreview_UnapprovedProduct(t *testing.T) {
	f := newCheckoutFixture()

	p := f.s.products[101]
	p.IsApproved = false
	f.s.products[101] = p

	_, err := f.uc.Preview(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusGone)
	assert.Equal(t, 0, f.mgr.beganCount)
}

func TestPreview_InsufficientStock(t *testing.T) {
	f := newCheckoutFixture()

	items := f.s.items[11]
	items[0].Quantity = 99
	f.s.items[11] = items

	_, err := f.uc.Preview(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusGone)
	assert.Equal(t, 0, f.mgr.beganCount)
}

// Previewは何度呼んでも結果が同じで、状態も変えない
func TestPreview_Idempotent(t *testing.T) {
	f := newCheckoutFixture()

	first, err := f.uc.Preview(context.Background(), 1, "SAVE10")
	require.NoError(t, err)
	second, err := f.uc.Preview(context.Background(), 1, "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(5), f.s.products[101].Stock)
	assert.Len(t, f.s.items[11], 1)
	assert.Empty(t, f.s.purchases)
	assert.Equal(t, 0, f.mgr.beganCount)
}

func TestBuy_Success(t *testing.T) {
	f := newCheckoutFixture()

	out, err := f.uc.Buy(context.Background(), 1, "")
	require.NoError(t, err)

	require.NotNil(t, out.PurchaseID)
	assert.Equal(t, int64(3000), out.FinalTotal)
	assert.Equal(t, "1-2-3 Test St", out.Address)

	//在庫減算・購入作成・カート削除が全部反映されている
	assert.Equal(t, int64(4), f.s.products[101].Stock)
	assert.Equal(t, model.CartStatusCheckedOut, f.s.carts[1].Status)
	assert.Empty(t, f.s.items[11])

	p, ok := f.s.purchases[*out.PurchaseID]
	require.True(t, ok)
	assert.Equal(t, int64(1), p.UserID)
	assert.Equal(t, int64(3000), p.FinalTotal)
	assert.Equal(t, "1-2-3 Test St", p.Address)
	assert.Equal(t, model.PaymentStatusPaid, p.PaymentStatus)
	assert.Equal(t, model.FulfillmentStatusPending, p.FulfillmentStatus)

	items := f.s.purchaseItems[*out.PurchaseID]
	require.Len(t, items, 1)
	assert.Equal(t, int64(101), items[0].ProductID)
	assert.Equal(t, int64(2000), items[0].UnitPrice)
	assert.Equal(t, int64(1), items[0].Quantity)
	assert.Equal(t, 0, items[0].Position)

	assert.Equal(t, 1, f.mgr.commitCount)
	assert.Equal(t, 0, f.mgr.rollbackCount)

	//メトリクスはコミット後に1回
	require.Len(t, f.rec.records, 1)
	rec := f.rec.records[0]
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, int64(3000), rec.FinalTotal)
	assert.Equal(t, int64(1), rec.UnitsByCategory[7])
	assert.Equal(t, 1, rec.DistinctCategories)
}

func TestBuy_WithCoupon(t *testing.T) {
	f := newCheckoutFixture()

	out, err := f.uc.Buy(context.Background(), 1, "SAVE10")
	require.NoError(t, err)

	require.NotNil(t, out.PurchaseID)
	p := f.s.purchases[*out.PurchaseID]
	assert.Equal(t, "SAVE10", p.CouponCode)
	assert.Equal(t, int64(1800), p.TotalAfterDiscount)
	assert.Equal(t, int64(2800), p.FinalTotal)

	require.Len(t, f.rec.records, 1)
	assert.Equal(t, "SAVE10", f.rec.records[0].CouponCode)
	assert.Equal(t, int64(200), f.rec.records[0].DiscountAmount)
}

// 住所未設定は400。在庫減算まで進んでいても巻き戻る
func TestBuy_MissingAddress(t *testing.T) {
	f := newCheckoutFixture()

	u := f.s.users[1]
	u.Address = "   "
	f.s.users[1] = u

	_, err := f.uc.Buy(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := AsHTTPError(err)
	assert.Equal(t, "delivery address required", he.Message)

	assert.Equal(t, int64(5), f.s.products[101].Stock)
	assert.Empty(t, f.s.purchases)
	assert.Equal(t, model.CartStatusActive, f.s.carts[1].Status)
	assert.Equal(t, 1, f.mgr.rollbackCount)
	assert.Equal(t, 0, f.mgr.commitCount)
	assert.Empty(t, f.rec.records)
}

// ストレージ起因の失敗は詳細を隠して汎用のリトライ案内に変える
func TestBuy_PurchaseInsertFailure(t *testing.T) {
	f := newCheckoutFixture()
	f.mgr.failCreatePurchase = true

	_, err := f.uc.Buy(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := AsHTTPError(err)
	assert.Equal(t, "checkout failed, please retry", he.Message)

	//全部なかったことになっている
	assert.Equal(t, int64(5), f.s.products[101].Stock)
	assert.Empty(t, f.s.purchases)
	assert.Len(t, f.s.items[11], 1)
	assert.Equal(t, 1, f.mgr.rollbackCount)
	assert.Empty(t, f.rec.records)
}

func TestBuy_CommitFailure(t *testing.T) {
	f := newCheckoutFixture()
	f.mgr.commitErr = errors.New("connection reset")

	_, err := f.uc.Buy(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := AsHTTPError(err)
	assert.Equal(t, "checkout failed, please retry", he.Message)

	assert.Equal(t, int64(5), f.s.products[101].Stock)
	assert.Empty(t, f.s.purchases)
	assert.Equal(t, model.CartStatusActive, f.s.carts[1].Status)
	assert.Len(t, f.s.items[11], 1)
	assert.Equal(t, 1, f.mgr.rollbackCount)
	assert.Empty(t, f.rec.records)
}

// メトリクス側が死んでいても購入は成立する
func TestBuy_MetricsPanicDoesNotUnwindPurchase(t *testing.T) {
	f := newCheckoutFixture()
	f.uc.metrics = panicMetrics{}

	out, err := f.uc.Buy(context.Background(), 1, "")
	require.NoError(t, err)
	require.NotNil(t, out.PurchaseID)

	assert.Equal(t, int64(4), f.s.products[101].Stock)
	assert.Len(t, f.s.purchases, 1)
	assert.Equal(t, 1, f.mgr.commitCount)
}

// 最後の1個を2人が同時に買う。成立するのはちょうど1人
func TestBuy_ConcurrentLastUnit(t *testing.T) {
	f := newCheckoutFixture()

	p := f.s.products[101]
	p.Stock = 1
	f.s.products[101] = p

	f.s.users[2] = model.User{ID: 2, Name: "rival", Email: "rival@example.com", Address: "4-5-6 Test St"}
	f.s.carts[2] = model.Cart{ID: 22, UserID: 2, Status: model.CartStatusActive}
	f.s.items[22] = []model.CartItem{{ID: 2, CartID: 22, ProductID: 101, Quantity: 1, UnitPriceSnapshot: 2000}}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, userID := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = f.uc.Buy(context.Background(), userID, "")
		}(i, userID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			//負けた側は事前検証の410か、減算競合の汎用リトライ400
			he, ok := AsHTTPError(err)
			require.True(t, ok)
			assert.Contains(t, []int{http.StatusGone, http.StatusBadRequest}, he.Status)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(0), f.s.products[101].Stock)
	assert.Len(t, f.s.purchases, 1)
	assert.Equal(t, 1, f.mgr.commitCount)
}

func TestBuy_EmptyCartNoTransaction(t *testing.T) {
	f := newCheckoutFixture()
	f.s.items[11] = nil

	_, err := f.uc.Buy(context.Background(), 1, "")
	requireHTTPStatus(t, err, http.StatusNotFound)
	assert.Equal(t, 0, f.mgr.beganCount)
}

func TestCheckout_Unauthorized(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.uc.Preview(context.Background(), 0, "")
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	_, err = f.uc.Buy(context.Background(), -1, "")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

// 複数明細＋複数カテゴリの価格とメトリクス集計
func TestBuy_MultipleLines(t *testing.T) {
	f := newCheckoutFixture()

	f.s.products[102] = model.Product{ID: 102, Title: "gadget", Price: 500, Stock: 10, IsApproved: true, CategoryID: 8}
	f.s.items[11] = append(f.s.items[11], model.CartItem{ID: 3, CartID: 11, ProductID: 102, Quantity: 3, UnitPriceSnapshot: 500})

	out, err := f.uc.Buy(context.Background(), 1, "SAVE10")
	require.NoError(t, err)

	// 2000 + 3*500 = 3500, 10%OFFで3150, 送料1000で4150
	assert.Equal(t, int64(3500), out.TotalBeforeDiscount)
	assert.Equal(t, int64(3150), out.TotalAfterDiscount)
	assert.Equal(t, int64(4150), out.FinalTotal)

	require.NotNil(t, out.PurchaseID)
	items := f.s.purchaseItems[*out.PurchaseID]
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, 1, items[1].Position)

	assert.Equal(t, int64(4), f.s.products[101].Stock)
	assert.Equal(t, int64(7), f.s.products[102].Stock)

	require.Len(t, f.rec.records, 1)
	rec := f.rec.records[0]
	assert.Equal(t, 2, rec.DistinctCategories)
	assert.Equal(t, int64(1), rec.UnitsByCategory[7])
	assert.Equal(t, int64(3), rec.UnitsByCategory[8])
}
