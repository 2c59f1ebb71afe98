package model

import "time"

// 割引率クーポン（0〜100%）
type Coupon struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code               string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	DiscountPercentage int64     `gorm:"not null" json:"discount_percentage"`
	IsActive           bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
