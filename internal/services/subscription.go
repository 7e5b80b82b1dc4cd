package services

import (
	"encoding/json"
	"fmt"
	"time"

	"mtsp/internal/database"
	"mtsp/internal/models"
	"mtsp/pkg/config"
	"mtsp/pkg/errors"
	"mtsp/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionService 订阅账本 - 每租户计费状态机的唯一归属方。
// 状态只能沿固定边推进，cancelled 记录不复用，续订创建新记录并保留历史。
type SubscriptionService struct {
	db        *gorm.DB
	log       *logrus.Logger
	trialDays int
	graceDays int
	retention time.Duration
}

func NewSubscriptionService() *SubscriptionService {
	cfg := config.GetConfig()
	return &SubscriptionService{
		db:        database.GetDB(),
		log:       logger.GetLogger(),
		trialDays: cfg.Subscription.TrialDays,
		graceDays: cfg.Subscription.GraceDays,
		retention: time.Duration(cfg.Subscription.RetentionDays) * 24 * time.Hour,
	}
}

// CreateTrial 在给定事务内为新企业创建试用订阅（注册流程专用）
func (s *SubscriptionService) CreateTrial(tx *gorm.DB, businessID uint, plan string, amount int64, currency string) (*models.Subscription, error) {
	now := time.Now()
	trialEnd := now.AddDate(0, 0, s.trialDays)

	subscription := &models.Subscription{
		BusinessID:         businessID,
		Status:             models.SubscriptionStatusTrial,
		Plan:               plan,
		Amount:             amount,
		Currency:           currency,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEnd,
		TrialEnd:           &trialEnd,
		Current:            true,
	}

	if err := tx.Create(subscription).Error; err != nil {
		return nil, err
	}
	return subscription, nil
}

// GetCurrent 获取企业的当前订阅
func (s *SubscriptionService) GetCurrent(businessID uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.Where("business_id = ? AND current = ?", businessID, true).
		Order("id DESC").First(&subscription).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewRecordNotFound("订阅不存在")
		}
		return nil, err
	}
	return &subscription, nil
}

// Access 实现授权网关的 SubscriptionGater 依赖
func (s *SubscriptionService) Access(businessID uint) (models.AccessLevel, error) {
	subscription, err := s.GetCurrent(businessID)
	if err != nil {
		return models.AccessNone, err
	}
	return subscription.Access(time.Now(), s.retention), nil
}

// ApplyBillingEvent 外部事件驱动状态转移的唯一入口。
// event_id 幂等：重放已处理的事件直接返回当前订阅，不产生第二次变更。
// 同一企业的事件通过当前订阅行的行级锁串行化。
func (s *SubscriptionService) ApplyBillingEvent(businessID uint, eventType, eventID string, payload map[string]interface{}) (*models.Subscription, error) {
	if eventID == "" {
		return nil, errors.NewValidation("event_id 不能为空")
	}

	var result *models.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 先锁当前订阅行，串行化同一企业的并发事件与人工取消
		var subscription models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND current = ?", businessID, true).
			Order("id DESC").First(&subscription).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("订阅不存在")
			}
			return err
		}

		// 幂等检查必须在持锁后进行：并发重复投递的后到事务在此阻塞，
		// 先到者提交后其事件记录在这里可见，后到者降级为空操作
		var processed int64
		if err := tx.Model(&models.BillingEvent{}).Where("event_id = ?", eventID).Count(&processed).Error; err != nil {
			return err
		}
		if processed > 0 {
			s.log.WithFields(logrus.Fields{
				"event":    "billing_event_replayed",
				"event_id": eventID,
			}).Info("账单事件重放，跳过")
			result = &subscription
			return nil
		}

		fromStatus := subscription.Status
		now := time.Now()
		if err := subscription.Advance(eventType, now); err != nil {
			return errors.NewValidation(err.Error())
		}

		if err := tx.Save(&subscription).Error; err != nil {
			return err
		}

		// 记录事件。行级锁已串行化同企业的重复投递，
		// 唯一索引命中说明 event_id 撞上了其他订阅的事件，整个事务回滚
		raw, err := json.Marshal(payload)
		if err != nil {
			raw = []byte("{}")
		}
		event := &models.BillingEvent{
			EventID:        eventID,
			EventType:      eventType,
			BusinessID:     businessID,
			SubscriptionID: &subscription.ID,
			FromStatus:     string(fromStatus),
			ToStatus:       string(subscription.Status),
			Payload:        datatypes.JSON(raw),
		}
		if err := tx.Create(event).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return errors.NewValidation(fmt.Sprintf("事件 %s 已被其他订阅占用", eventID))
			}
			return err
		}

		s.log.WithFields(logrus.Fields{
			"event":       "subscription_transition",
			"business_id": businessID,
			"event_id":    eventID,
			"event_type":  eventType,
			"from":        fromStatus,
			"to":          subscription.Status,
		}).Info("订阅状态已推进")

		result = &subscription
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel 人工取消 - 与外部事件共用同一转移入口和串行化机制
func (s *SubscriptionService) Cancel(businessID uint, actorID uint) (*models.Subscription, error) {
	eventID := fmt.Sprintf("manual-cancel-%s", uuid.NewString())
	return s.ApplyBillingEvent(businessID, models.BillingEventCancel, eventID, map[string]interface{}{
		"source":   "manual",
		"actor_id": actorID,
	})
}

// Resubscribe 重新订阅 - cancelled 为终态，恢复服务创建新记录，旧记录留存审计
func (s *SubscriptionService) Resubscribe(businessID uint, plan string, amount int64, currency string) (*models.Subscription, error) {
	var result *models.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var old models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND current = ?", businessID, true).
			Order("id DESC").First(&old).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("订阅不存在")
			}
			return err
		}

		if old.Status != models.SubscriptionStatusCancelled {
			return errors.NewValidation("当前订阅尚未取消，无法重新订阅")
		}

		if err := tx.Model(&old).Update("current", false).Error; err != nil {
			return err
		}

		now := time.Now()
		subscription := &models.Subscription{
			BusinessID:         businessID,
			Status:             models.SubscriptionStatusActive,
			Plan:               plan,
			Amount:             amount,
			Currency:           currency,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 1, 0),
			Current:            true,
		}
		if err := tx.Create(subscription).Error; err != nil {
			return err
		}

		result = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetHistory 订阅历史（审计用，含已取消记录）
func (s *SubscriptionService) GetHistory(businessID uint) ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	err := s.db.Where("business_id = ?", businessID).
		Order("id DESC").Find(&subscriptions).Error
	return subscriptions, err
}

// ========== 扫描任务调用的批量推进方法 ==========

// ExpireTrials 将试用期已过且未支付的订阅推进为 cancelled
func (s *SubscriptionService) ExpireTrials() error {
	var expired []models.Subscription
	err := s.db.Where("current = ? AND status = ? AND trial_end < ?",
		true, models.SubscriptionStatusTrial, time.Now()).Find(&expired).Error
	if err != nil {
		return err
	}

	for _, subscription := range expired {
		eventID := fmt.Sprintf("trial-expired-%d-%s", subscription.ID, uuid.NewString())
		if _, err := s.ApplyBillingEvent(subscription.BusinessID, models.BillingEventTrialExpired, eventID, nil); err != nil {
			s.log.Errorf("试用过期推进失败 business_id=%d: %v", subscription.BusinessID, err)
		}
	}
	return nil
}

// ExpireGracePeriods 将宽限期已过的欠费订阅推进为 cancelled
func (s *SubscriptionService) ExpireGracePeriods() error {
	cutoff := time.Now().AddDate(0, 0, -s.graceDays)
	var expired []models.Subscription
	err := s.db.Where("current = ? AND status = ? AND past_due_since < ?",
		true, models.SubscriptionStatusPastDue, cutoff).Find(&expired).Error
	if err != nil {
		return err
	}

	for _, subscription := range expired {
		eventID := fmt.Sprintf("grace-expired-%d-%s", subscription.ID, uuid.NewString())
		if _, err := s.ApplyBillingEvent(subscription.BusinessID, models.BillingEventGraceExpired, eventID, nil); err != nil {
			s.log.Errorf("宽限期过期推进失败 business_id=%d: %v", subscription.BusinessID, err)
		}
	}
	return nil
}
