package model

import (
	"time"

	"gorm.io/gorm"
)

// 価格は最小通貨単位（セント）で持つ
type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Price       int64  `gorm:"not null" json:"price"`
	Stock       int64  `gorm:"not null" json:"stock"`

	//承認済みの商品だけ購入できる
	IsApproved bool  `gorm:"not null;default:false" json:"is_approved"`
	CategoryID int64 `gorm:"not null;index" json:"category_id"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
