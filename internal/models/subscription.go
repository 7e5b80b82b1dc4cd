package models

import (
	"fmt"
	"time"
)

// SubscriptionStatus 订阅状态 - 封闭类型，状态机按固定边沿单向推进
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled" // 终态，记录不复用
)

// IsValid 检查订阅状态是否有效
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCancelled:
		return true
	default:
		return false
	}
}

// 状态机允许的转移边
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusTrial:     {SubscriptionStatusActive, SubscriptionStatusCancelled},
	SubscriptionStatusActive:    {SubscriptionStatusPastDue, SubscriptionStatusCancelled},
	SubscriptionStatusPastDue:   {SubscriptionStatusActive, SubscriptionStatusCancelled},
	SubscriptionStatusCancelled: {},
}

// CanTransitionTo 检查状态转移是否合法
func (s SubscriptionStatus) CanTransitionTo(to SubscriptionStatus) bool {
	for _, allowed := range subscriptionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// 账单事件类型
const (
	BillingEventChargeSucceeded = "charge_succeeded"
	BillingEventChargeFailed    = "charge_failed"
	BillingEventCancel          = "cancel"
	BillingEventTrialExpired    = "trial_expired" // 扫描任务生成的合成事件
	BillingEventGraceExpired    = "grace_expired" // 扫描任务生成的合成事件
)

// NextStatusForEvent 账单事件驱动的状态推进。
// 返回目标状态；当前状态下该事件不产生转移时 ok 为 false。
func NextStatusForEvent(current SubscriptionStatus, eventType string) (SubscriptionStatus, bool) {
	switch eventType {
	case BillingEventChargeSucceeded:
		switch current {
		case SubscriptionStatusTrial, SubscriptionStatusPastDue:
			return SubscriptionStatusActive, true
		case SubscriptionStatusActive:
			// 续费成功，状态不变但周期顺延
			return SubscriptionStatusActive, true
		}
	case BillingEventChargeFailed:
		if current == SubscriptionStatusActive {
			return SubscriptionStatusPastDue, true
		}
	case BillingEventCancel:
		switch current {
		case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue:
			return SubscriptionStatusCancelled, true
		}
	case BillingEventTrialExpired:
		if current == SubscriptionStatusTrial {
			return SubscriptionStatusCancelled, true
		}
	case BillingEventGraceExpired:
		if current == SubscriptionStatusPastDue {
			return SubscriptionStatusCancelled, true
		}
	}
	return current, false
}

// AccessLevel 订阅状态对租户操作的放行级别，由授权网关消费
type AccessLevel int

const (
	AccessFull       AccessLevel = iota // 读写全放行
	AccessNoBillable                    // 允许读，禁止创建新的计费资源
	AccessReadOnly                      // 仅允许读（已取消，保留期内）
	AccessNone                          // 全部拒绝（已取消且超过保留期）
)

// Subscription 订阅模型 - 每个企业最多一条 current 记录，历史记录留存审计
type Subscription struct {
	BaseModel
	BusinessID         uint               `json:"business_id" gorm:"not null;index"`
	Status             SubscriptionStatus `json:"status" gorm:"not null;size:20;index"`
	Plan               string             `json:"plan" gorm:"not null;size:50"`
	Amount             int64              `json:"amount" gorm:"not null"` // 最小货币单位
	Currency           string             `json:"currency" gorm:"not null;size:3"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	TrialEnd           *time.Time         `json:"trial_end"`
	PastDueSince       *time.Time         `json:"past_due_since"` // 宽限期起点
	CancelledAt        *time.Time         `json:"cancelled_at"`
	Current            bool               `json:"current" gorm:"not null;default:true;index"`

	Business *Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}

// TableName 表名
func (s *Subscription) TableName() string {
	return "subscriptions"
}

// Advance 按账单事件推进状态并落实相应字段变更。
// 非法转移或试用期外的支付返回错误，记录保持原样。
func (s *Subscription) Advance(eventType string, now time.Time) error {
	next, ok := NextStatusForEvent(s.Status, eventType)
	if !ok {
		return fmt.Errorf("状态 %s 下不允许事件 %s", s.Status, eventType)
	}
	// 试用期内首次支付才允许 trial -> active
	if s.Status == SubscriptionStatusTrial &&
		eventType == BillingEventChargeSucceeded && !s.InTrialWindow(now) {
		return fmt.Errorf("试用期已结束，无法通过支付转为激活")
	}

	s.Status = next
	switch eventType {
	case BillingEventChargeSucceeded:
		// 支付成功顺延计费周期，清除欠费标记
		s.CurrentPeriodStart = now
		s.CurrentPeriodEnd = now.AddDate(0, 1, 0)
		s.PastDueSince = nil
	case BillingEventChargeFailed:
		s.PastDueSince = &now
	case BillingEventCancel, BillingEventTrialExpired, BillingEventGraceExpired:
		s.CancelledAt = &now
	}
	return nil
}

// InTrialWindow 试用期是否仍然有效
func (s *Subscription) InTrialWindow(now time.Time) bool {
	return s.Status == SubscriptionStatusTrial && s.TrialEnd != nil && now.Before(*s.TrialEnd)
}

// Access 按状态计算放行级别。retention 为取消后的可读保留时长。
func (s *Subscription) Access(now time.Time, retention time.Duration) AccessLevel {
	switch s.Status {
	case SubscriptionStatusActive:
		return AccessFull
	case SubscriptionStatusTrial:
		if s.InTrialWindow(now) {
			return AccessFull
		}
		// 试用已过期但扫描尚未推进状态，按欠费口径处理
		return AccessNoBillable
	case SubscriptionStatusPastDue:
		return AccessNoBillable
	case SubscriptionStatusCancelled:
		cancelledAt := s.UpdatedAt
		if s.CancelledAt != nil {
			cancelledAt = *s.CancelledAt
		}
		if now.Sub(cancelledAt) <= retention {
			return AccessReadOnly
		}
		return AccessNone
	default:
		return AccessNone
	}
}
