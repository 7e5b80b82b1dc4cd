package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillingEvent 账单事件处理记录 - event_id 唯一索引保证幂等，
// 重放同一事件不会产生第二次状态变更
type BillingEvent struct {
	ID             uint           `json:"id" gorm:"primarykey"`
	EventID        string         `json:"event_id" gorm:"uniqueIndex;not null;size:100"` // 计费方提供的幂等键
	EventType      string         `json:"event_type" gorm:"not null;size:50"`
	BusinessID     uint           `json:"business_id" gorm:"not null;index"`
	SubscriptionID *uint          `json:"subscription_id" gorm:"index"`
	FromStatus     string         `json:"from_status" gorm:"size:20"`
	ToStatus       string         `json:"to_status" gorm:"size:20"`
	Payload        datatypes.JSON `json:"payload"` // 计费方原始报文，审计用
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName 表名
func (e *BillingEvent) TableName() string {
	return "billing_events"
}
