package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Products() ProductRepository
	Carts() CartRepository
	CartItems() CartItemRepository
	Purchases() PurchaseRepository
	Inventory() InventoryRepository
}

// 開始済みトランザクションのハンドル。
// CommitかRollbackのどちらかを必ず呼ぶこと。
// Rollbackは決着後に呼んでも安全（no-op）。
type TxHandle interface {
	Repos() TxRepos
	Commit() error
	Rollback() error
}

// UsecaseからTxの開始/commit/rollbackの実装を隠す。
type TransactionManager interface {
	Begin(ctx context.Context) (TxHandle, error)
}
