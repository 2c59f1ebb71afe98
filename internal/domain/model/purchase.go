package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type FulfillmentStatus string

const (
	FulfillmentStatusPending  FulfillmentStatus = "PENDING"
	FulfillmentStatusShipped  FulfillmentStatus = "SHIPPED"
	FulfillmentStatusCanceled FulfillmentStatus = "CANCELED"
)

// 購入レコード。コミット時に1回だけ作られ、以後は管理者のキャンセル（返金）でだけステータスが変わる。
type Purchase struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//クーポン未適用なら空文字
	CouponCode string `gorm:"type:varchar(100)" json:"coupon_code"`

	TotalBeforeDiscount int64 `gorm:"not null" json:"total_before_discount"`
	TotalAfterDiscount  int64 `gorm:"not null" json:"total_after_discount"`
	ShippingCost        int64 `gorm:"not null" json:"shipping_cost"`
	FinalTotal          int64 `gorm:"not null" json:"final_total"`

	//購入時点の配送先のスナップショット
	Address string `gorm:"type:varchar(500);not null" json:"address"`

	PaymentStatus     PaymentStatus     `gorm:"type:varchar(20);not null" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:varchar(20);not null" json:"fulfillment_status"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
