package model

import "time"

// 購入明細。Positionで購入時の並び順を保持する。
type PurchaseItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PurchaseID int64     `gorm:"not null;index" json:"purchase_id"`
	ProductID  int64     `gorm:"not null;index" json:"product_id"`
	UnitPrice  int64     `gorm:"not null" json:"unit_price"`
	Quantity   int64     `gorm:"not null" json:"quantity"`
	Position   int       `gorm:"not null" json:"position"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
