package services

import (
	"mtsp/internal/models"
	"mtsp/pkg/errors"
	"mtsp/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Actor 经过认证的操作者三元组，由认证中间件从JWT声明构造
type Actor struct {
	UserID     uint
	BusinessID *uint // super_admin 为 nil
	Role       models.Role
}

// Target 授权目标
type Target struct {
	BusinessID uint
	UserID     *uint // 目标用户，仅 self 类操作需要
}

// Operation 一次租户范围操作的授权要素
type Operation struct {
	Name          string      // 审计名称，如 "user:create"
	MinRole       models.Role // 层级最低要求
	Write         bool        // 是否写操作
	Billable      bool        // 是否创建新的计费资源（欠费状态下拦截）
	SelfScoped    bool        // 仅限本人执行，超级管理员亦不例外
	BillingExempt bool        // 订阅管理自身的操作，不受订阅状态拦截
}

// 预定义操作
var (
	OpBusinessRead   = Operation{Name: "business:read", MinRole: models.RoleMember}
	OpBusinessUpdate = Operation{Name: "business:update", MinRole: models.RoleOwner, Write: true}

	OpUserList   = Operation{Name: "user:list", MinRole: models.RoleMember}
	OpUserRead   = Operation{Name: "user:read", MinRole: models.RoleMember}
	OpUserCreate = Operation{Name: "user:create", MinRole: models.RoleAdmin, Write: true, Billable: true}
	OpUserUpdate = Operation{Name: "user:update", MinRole: models.RoleAdmin, Write: true}
	OpUserDelete = Operation{Name: "user:delete", MinRole: models.RoleAdmin, Write: true}

	OpSelfDelete = Operation{Name: "user:delete-self", MinRole: models.RoleMember, Write: true, SelfScoped: true}

	OpSubscriptionRead        = Operation{Name: "subscription:read", MinRole: models.RoleAdmin, BillingExempt: true}
	OpSubscriptionCancel      = Operation{Name: "subscription:cancel", MinRole: models.RoleAdmin, Write: true, BillingExempt: true}
	OpSubscriptionResubscribe = Operation{Name: "subscription:resubscribe", MinRole: models.RoleOwner, Write: true, BillingExempt: true}

	OpPresenceHeartbeat = Operation{Name: "presence:heartbeat", MinRole: models.RoleMember, Write: true}
	OpPresenceSnapshot  = Operation{Name: "presence:snapshot", MinRole: models.RoleMember}
)

// SubscriptionGater 订阅状态查询 - 授权网关对账本的唯一依赖面
type SubscriptionGater interface {
	Access(businessID uint) (models.AccessLevel, error)
}

// AuthorizationService 授权网关 - 全部租户范围入口共用的唯一判定函数，
// 任何功能模块不得自行实现授权逻辑
type AuthorizationService struct {
	ledger SubscriptionGater
	log    *logrus.Logger
}

func NewAuthorizationService(ledger SubscriptionGater) *AuthorizationService {
	return &AuthorizationService{
		ledger: ledger,
		log:    logger.GetLogger(),
	}
}

// Authorize 判定 (actor, target, operation) 是否放行。
// 判定顺序：self类操作 → 超级管理员直通 → 租户隔离 → 角色层级 → 订阅状态。
func (s *AuthorizationService) Authorize(actor Actor, target Target, op Operation) error {
	// self类操作仅限本人，不适用超级管理员直通
	if op.SelfScoped {
		if target.UserID != nil && *target.UserID == actor.UserID {
			return nil
		}
		s.auditDeny(actor, target, op, "self_scope")
		return errors.NewInsufficientRole("该操作仅限本人执行")
	}

	// 超级管理员跨租户直通，必须无条件留痕
	if actor.Role == models.RoleSuperAdmin {
		s.log.WithFields(logrus.Fields{
			"event":       "super_admin_bypass",
			"actor_id":    actor.UserID,
			"business_id": target.BusinessID,
			"operation":   op.Name,
		}).Info("超级管理员跨租户操作")
		return nil
	}

	// 租户隔离 - 不可协商的硬性不变量，违规按安全事件记录
	if actor.BusinessID == nil || *actor.BusinessID != target.BusinessID {
		s.log.WithFields(logrus.Fields{
			"event":        "tenant_mismatch",
			"actor_id":     actor.UserID,
			"actor_tenant": actor.BusinessID,
			"target":       target.BusinessID,
			"operation":    op.Name,
		}).Warn("跨租户访问被拒绝")
		return errors.NewTenantMismatch()
	}

	// 角色层级
	if !actor.Role.AtLeast(op.MinRole) {
		s.auditDeny(actor, target, op, "insufficient_role")
		return errors.NewInsufficientRole("角色权限不足：需要 " + string(op.MinRole) + " 及以上角色")
	}

	// 订阅状态拦截（订阅管理自身的操作豁免）
	if op.BillingExempt {
		return nil
	}
	level, err := s.ledger.Access(target.BusinessID)
	if err != nil {
		return err
	}
	switch level {
	case models.AccessFull:
		return nil
	case models.AccessNoBillable:
		if op.Billable {
			s.auditDeny(actor, target, op, "subscription_past_due")
			return errors.NewSubscriptionGate("订阅欠费，无法创建新的计费资源")
		}
		return nil
	case models.AccessReadOnly:
		if op.Write {
			s.auditDeny(actor, target, op, "subscription_cancelled")
			return errors.NewSubscriptionGate("订阅已取消，仅允许读取")
		}
		return nil
	default:
		s.auditDeny(actor, target, op, "subscription_retention_elapsed")
		return errors.NewSubscriptionGate("订阅已取消且超过数据保留期")
	}
}

// auditDeny 拒绝事件审计日志
func (s *AuthorizationService) auditDeny(actor Actor, target Target, op Operation, reason string) {
	s.log.WithFields(logrus.Fields{
		"event":       "authorization_denied",
		"reason":      reason,
		"actor_id":    actor.UserID,
		"actor_role":  actor.Role,
		"business_id": target.BusinessID,
		"operation":   op.Name,
	}).Warn("授权被拒绝")
}
