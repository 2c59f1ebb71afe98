package usecase

import (
	"context"
	"net/http"
	"testing"

	"marketplace/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committerFixture() (*fakeStore, *fakeTxManager, *purchaseCommitter) {
	s := newFakeStore()
	s.products[101] = model.Product{ID: 101, Title: "widget", Price: 2000, Stock: 5, IsApproved: true, CategoryID: 7}
	s.products[102] = model.Product{ID: 102, Title: "gadget", Price: 500, Stock: 1, IsApproved: true, CategoryID: 8}
	s.carts[1] = model.Cart{ID: 11, UserID: 1, Status: model.CartStatusActive}
	s.items[11] = []model.CartItem{{ID: 1, CartID: 11, ProductID: 101, Quantity: 1}}

	mgr := &fakeTxManager{s: s}
	return s, mgr, newPurchaseCommitter(mgr)
}

func testBuyer() model.User {
	return model.User{ID: 1, Name: "buyer", Address: "1-2-3 Test St"}
}

func testBreakdown() PriceBreakdown {
	return PriceBreakdown{TotalBeforeDiscount: 2000, TotalAfterDiscount: 2000, ShippingCost: 1000, FinalTotal: 3000}
}

// ステージ順を守らない呼び出しは全部400
func TestCommitter_StageOrderEnforced(t *testing.T) {
	ctx := context.Background()
	lines := []snapshotLine{{ProductID: 101, UnitPrice: 2000, Quantity: 1}}

	//Beginの前にDecrementStock
	_, _, c := committerFixture()
	requireHTTPStatus(t, c.DecrementStock(ctx, lines), http.StatusBadRequest)

	//Beginの前にCommit
	_, _, c = committerFixture()
	requireHTTPStatus(t, c.Commit(), http.StatusBadRequest)

	//Beginの前にRollback
	_, _, c = committerFixture()
	requireHTTPStatus(t, c.Rollback(), http.StatusBadRequest)

	//二重Begin
	_, _, c = committerFixture()
	require.NoError(t, c.Begin(ctx))
	requireHTTPStatus(t, c.Begin(ctx), http.StatusBadRequest)

	//DecrementStockを飛ばしてCreatePurchase
	_, _, c = committerFixture()
	require.NoError(t, c.Begin(ctx))
	_, err := c.CreatePurchase(ctx, testBuyer(), "", testBreakdown(), []int64{101}, []int64{2000}, []int64{1})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	//ClearCartを飛ばしてCommit
	_, _, c = committerFixture()
	require.NoError(t, c.Begin(ctx))
	require.NoError(t, c.DecrementStock(ctx, lines))
	requireHTTPStatus(t, c.Commit(), http.StatusBadRequest)
}

func TestCommitter_HappyPath(t *testing.T) {
	ctx := context.Background()
	s, mgr, c := committerFixture()
	lines := []snapshotLine{{ProductID: 101, UnitPrice: 2000, Quantity: 2}}

	require.NoError(t, c.Begin(ctx))
	require.NoError(t, c.DecrementStock(ctx, lines))

	id, err := c.CreatePurchase(ctx, testBuyer(), "SAVE10", testBreakdown(), []int64{101}, []int64{2000}, []int64{2})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	require.NoError(t, c.ClearCart(ctx, 11))
	require.NoError(t, c.Commit())

	assert.Equal(t, int64(3), s.products[101].Stock)
	assert.Equal(t, model.CartStatusCheckedOut, s.carts[1].Status)
	assert.Empty(t, s.items[11])
	assert.Equal(t, "SAVE10", s.purchases[id].CouponCode)
	assert.Equal(t, 1, mgr.commitCount)
}

// 途中の明細で在庫競合したら、先に減らした分もRollbackで戻る
func TestCommitter_StockConflictRollsBackPartialDecrement(t *testing.T) {
	ctx := context.Background()
	s, mgr, c := committerFixture()

	lines := []snapshotLine{
		{ProductID: 101, UnitPrice: 2000, Quantity: 2},
		{ProductID: 102, UnitPrice: 500, Quantity: 5}, //在庫1しかない
	}

	require.NoError(t, c.Begin(ctx))
	err := c.DecrementStock(ctx, lines)
	require.ErrorIs(t, err, errStockConflict)

	require.NoError(t, c.Rollback())
	assert.Equal(t, int64(5), s.products[101].Stock)
	assert.Equal(t, int64(1), s.products[102].Stock)
	assert.Equal(t, 1, mgr.rollbackCount)
}

func TestCommitter_CreatePurchaseValidation(t *testing.T) {
	ctx := context.Background()

	setup := func() *purchaseCommitter {
		_, _, c := committerFixture()
		require.NoError(t, c.Begin(ctx))
		require.NoError(t, c.DecrementStock(ctx, []snapshotLine{{ProductID: 101, UnitPrice: 2000, Quantity: 1}}))
		return c
	}

	//住所なし
	c := setup()
	_, err := c.CreatePurchase(ctx, model.User{ID: 1, Name: "buyer"}, "", testBreakdown(), []int64{101}, []int64{2000}, []int64{1})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	//空リスト
	c = setup()
	_, err = c.CreatePurchase(ctx, testBuyer(), "", testBreakdown(), nil, nil, nil)
	requireHTTPStatus(t, err, http.StatusBadRequest)

	//並行リストの長さ不一致
	c = setup()
	_, err = c.CreatePurchase(ctx, testBuyer(), "", testBreakdown(), []int64{101}, []int64{2000, 500}, []int64{1})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

// Commit後のRollbackはno-op（コミット済みの購入が消えたりしない）
func TestCommitter_RollbackAfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	s, mgr, c := committerFixture()

	require.NoError(t, c.Begin(ctx))
	require.NoError(t, c.DecrementStock(ctx, []snapshotLine{{ProductID: 101, UnitPrice: 2000, Quantity: 1}}))
	id, err := c.CreatePurchase(ctx, testBuyer(), "", testBreakdown(), []int64{101}, []int64{2000}, []int64{1})
	require.NoError(t, err)
	require.NoError(t, c.ClearCart(ctx, 11))
	require.NoError(t, c.Commit())

	require.NoError(t, c.Rollback())
	require.NoError(t, c.Rollback())

	assert.Contains(t, s.purchases, id)
	assert.Equal(t, int64(4), s.products[101].Stock)
	assert.Equal(t, 0, mgr.rollbackCount)
}
