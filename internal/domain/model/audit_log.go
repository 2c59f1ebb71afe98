package model

import "time"

type AuditAction string

const (
	//在庫を更新した操作
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	//商品を承認/非承認にした操作
	AuditActionApproveProduct AuditAction = "APPROVE_PRODUCT"
	//クーポンを作成/無効化した操作
	AuditActionUpdateCoupon AuditAction = "UPDATE_COUPON"
	//配送をキャンセルして在庫を戻した操作
	AuditActionCancelFulfillment AuditAction = "CANCEL_FULFILLMENT"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceProduct  AuditResourceType = "product"
	AuditResourceCoupon   AuditResourceType = "coupon"
	AuditResourceUser     AuditResourceType = "user"
	AuditResourcePurchase AuditResourceType = "purchase"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID int64             `gorm:"not null;index" json:"actor_user_id"`
	Action      AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//変更前後をJSON文字列で保存する
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
