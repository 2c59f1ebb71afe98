package usecase

import (
	"context"
	"errors"
	"sync"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// =====================
// チェックアウト用のインメモリストア。
// 在庫の条件付き減算をロック付きで実装して同時購入テストを回す
// =====================

type fakeStore struct {
	mu sync.Mutex

	users    map[int64]model.User
	carts    map[int64]model.Cart       // userID -> ACTIVE cart
	items    map[int64][]model.CartItem // cartID -> items
	products map[int64]model.Product
	coupons  map[string]model.Coupon

	purchases     map[int64]model.Purchase
	purchaseItems map[int64][]model.PurchaseItem

	nextPurchaseID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:          map[int64]model.User{},
		carts:          map[int64]model.Cart{},
		items:          map[int64][]model.CartItem{},
		products:       map[int64]model.Product{},
		coupons:        map[string]model.Coupon{},
		purchases:      map[int64]model.Purchase{},
		purchaseItems:  map[int64][]model.PurchaseItem{},
		nextPurchaseID: 1,
	}
}

// =====================
// 読み取り側のrepos（パイプライン前半で使う）
// =====================

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	panic("not used in checkout tests")
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	panic("not used in checkout tests")
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id int64) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) UpdateAddress(ctx context.Context, userID int64, address string) error {
	panic("not used in checkout tests")
}

type fakeCartRepo struct{ s *fakeStore }

func (r *fakeCartRepo) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	panic("not used in checkout tests")
}

func (r *fakeCartRepo) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok || c.Status != model.CartStatusActive {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *fakeCartRepo) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	panic("not used outside tx in checkout tests")
}

func (r *fakeCartRepo) Clear(ctx context.Context, cartID int64) error {
	panic("not used outside tx in checkout tests")
}

type fakeCartItemRepo struct{ s *fakeStore }

func (r *fakeCartItemRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]model.CartItem, len(r.s.items[cartID]))
	copy(items, r.s.items[cartID])
	return items, nil
}

func (r *fakeCartItemRepo) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64, unitPriceSnapshot int64) error {
	panic("not used in checkout tests")
}

func (r *fakeCartItemRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	panic("not used in checkout tests")
}

func (r *fakeCartItemRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	panic("not used in checkout tests")
}

func (r *fakeCartItemRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	panic("not used in checkout tests")
}

func (r *fakeCartItemRepo) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	panic("not used in checkout tests")
}

type fakeProductRepo struct{ s *fakeStore }

func (r *fakeProductRepo) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used in checkout tests")
}

func (r *fakeProductRepo) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) FindByIDs(ctx context.Context, productIDs []int64) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used in checkout tests")
}

func (r *fakeProductRepo) Update(ctx context.Context, p model.Product) error {
	panic("not used in checkout tests")
}

func (r *fakeProductRepo) DeleteByID(ctx context.Context, productID int64) error {
	panic("not used in checkout tests")
}

func (r *fakeProductRepo) SetApproval(ctx context.Context, productID int64, approved bool) error {
	panic("not used in checkout tests")
}

type fakeCouponRepo struct{ s *fakeStore }

func (r *fakeCouponRepo) FindActiveByCode(ctx context.Context, code string) (model.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok || !c.IsActive {
		return model.Coupon{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *fakeCouponRepo) List(ctx context.Context) ([]model.Coupon, error) {
	panic("not used in checkout tests")
}

func (r *fakeCouponRepo) Create(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	panic("not used in checkout tests")
}

func (r *fakeCouponRepo) SetActive(ctx context.Context, couponID int64, active bool) error {
	panic("not used in checkout tests")
}

// =====================
// トランザクション側。
// 書き込みは即座にストアへ反映し、undoを積んでRollbackで巻き戻す
// =====================

type fakeTxManager struct {
	s *fakeStore

	mu        sync.Mutex
	beginErr  error
	commitErr error

	//強制的に失敗させるフック
	failCreatePurchase bool

	beganCount    int
	commitCount   int
	rollbackCount int
}

func (m *fakeTxManager) Begin(ctx context.Context) (repo.TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.beganCount++
	return &fakeTxHandle{s: m.s, mgr: m}, nil
}

type fakeTxHandle struct {
	s   *fakeStore
	mgr *fakeTxManager

	mu       sync.Mutex
	undo     []func()
	finished bool
}

func (h *fakeTxHandle) Repos() repo.TxRepos { return &fakeTxRepos{h: h} }

func (h *fakeTxHandle) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return errors.New("tx already finished")
	}

	h.mgr.mu.Lock()
	commitErr := h.mgr.commitErr
	h.mgr.mu.Unlock()

	if commitErr != nil {
		return commitErr
	}

	h.finished = true
	h.undo = nil

	h.mgr.mu.Lock()
	h.mgr.commitCount++
	h.mgr.mu.Unlock()
	return nil
}

func (h *fakeTxHandle) Rollback() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return nil
	}
	h.finished = true

	//逆順で巻き戻す
	for i := len(h.undo) - 1; i >= 0; i-- {
		h.undo[i]()
	}
	h.undo = nil

	h.mgr.mu.Lock()
	h.mgr.rollbackCount++
	h.mgr.mu.Unlock()
	return nil
}

func (h *fakeTxHandle) pushUndo(fn func()) {
	h.mu.Lock()
	h.undo = append(h.undo, fn)
	h.mu.Unlock()
}

type fakeTxRepos struct{ h *fakeTxHandle }

func (r *fakeTxRepos) Products() repo.ProductRepository   { return &fakeProductRepo{s: r.h.s} }
func (r *fakeTxRepos) Carts() repo.CartRepository         { return &txCartRepo{h: r.h} }
func (r *fakeTxRepos) CartItems() repo.CartItemRepository { return &fakeCartItemRepo{s: r.h.s} }
func (r *fakeTxRepos) Purchases() repo.PurchaseRepository { return &txPurchaseRepo{h: r.h} }
func (r *fakeTxRepos) Inventory() repo.InventoryRepository { return &txInventoryRepo{h: r.h} }

type txInventoryRepo struct{ h *fakeTxHandle }

func (r *txInventoryRepo) SetStock(ctx context.Context, productID int64, newStock int64) error {
	panic("not used in checkout tests")
}

// 条件付き減算。fakeStoreのロック内で判定するので並行Buyでも負にならない
func (r *txInventoryRepo) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}

	p.Stock -= qty
	s.products[productID] = p

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := s.products[productID]
		restored.Stock += qty
		s.products[productID] = restored
	})
	return true, nil
}

func (r *txInventoryRepo) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	s.products[productID] = p

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := s.products[productID]
		restored.Stock -= qty
		s.products[productID] = restored
	})
	return nil
}

func (r *txInventoryRepo) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	panic("not used in checkout tests")
}

type txPurchaseRepo struct{ h *fakeTxHandle }

func (r *txPurchaseRepo) Create(ctx context.Context, p model.Purchase) (int64, error) {
	r.h.mgr.mu.Lock()
	fail := r.h.mgr.failCreatePurchase
	r.h.mgr.mu.Unlock()
	if fail {
		return 0, errors.New("purchase insert failed")
	}

	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextPurchaseID
	s.nextPurchaseID++
	p.ID = id
	s.purchases[id] = p

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.purchases, id)
	})
	return id, nil
}

func (r *txPurchaseRepo) CreateItems(ctx context.Context, purchaseID int64, items []model.PurchaseItem) error {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchaseItems[purchaseID] = items

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.purchaseItems, purchaseID)
	})
	return nil
}

func (r *txPurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[purchaseID]
	if !ok {
		return model.Purchase{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *txPurchaseRepo) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Purchase, int64, error) {
	panic("not used in checkout tests")
}

func (r *txPurchaseRepo) ListItemsByPurchaseID(ctx context.Context, purchaseID int64) ([]model.PurchaseItem, error) {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.PurchaseItem, len(s.purchaseItems[purchaseID]))
	copy(items, s.purchaseItems[purchaseID])
	return items, nil
}

func (r *txPurchaseRepo) UpdateStatuses(ctx context.Context, purchaseID int64, payment model.PaymentStatus, fulfillment model.FulfillmentStatus) error {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[purchaseID]
	if !ok {
		return repo.ErrNotFound
	}
	prev := p
	p.PaymentStatus = payment
	p.FulfillmentStatus = fulfillment
	s.purchases[purchaseID] = p

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.purchases[purchaseID] = prev
	})
	return nil
}

type txCartRepo struct{ h *fakeTxHandle }

func (r *txCartRepo) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	panic("not used in checkout tests")
}

func (r *txCartRepo) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	panic("not used in checkout tests")
}

func (r *txCartRepo) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, c := range s.carts {
		if c.ID == cartID {
			prev := c.Status
			c.Status = status
			s.carts[userID] = c

			uid := userID
			r.h.pushUndo(func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				restored := s.carts[uid]
				restored.Status = prev
				s.carts[uid] = restored
			})
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *txCartRepo) Clear(ctx context.Context, cartID int64) error {
	s := r.h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.items[cartID]
	delete(s.items, cartID)

	r.h.pushUndo(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items[cartID] = prev
	})
	return nil
}

// =====================
// メトリクス
// =====================

type captureMetrics struct {
	mu      sync.Mutex
	records []PurchaseMetrics
}

func (m *captureMetrics) RecordPurchase(rec PurchaseMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

type panicMetrics struct{}

func (panicMetrics) RecordPurchase(rec PurchaseMetrics) {
	panic("metrics sink down")
}
