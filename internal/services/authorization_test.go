package services_test

import (
	"testing"

	"mtsp/internal/models"
	"mtsp/internal/services"
	"mtsp/pkg/errors"

	"github.com/stretchr/testify/require"
)

// fakeGater 固定放行级别的订阅账本替身
type fakeGater struct {
	level models.AccessLevel
	err   error
	calls int
}

func (f *fakeGater) Access(businessID uint) (models.AccessLevel, error) {
	f.calls++
	return f.level, f.err
}

func uintPtr(v uint) *uint { return &v }

func memberActor(userID, businessID uint, role models.Role) services.Actor {
	return services.Actor{UserID: userID, BusinessID: uintPtr(businessID), Role: role}
}

func TestAuthorize_TenantIsolation(t *testing.T) {
	gater := &fakeGater{level: models.AccessFull}
	svc := services.NewAuthorizationService(gater)

	actor := memberActor(1, 10, models.RoleOwner)
	err := svc.Authorize(actor, services.Target{BusinessID: 20}, services.OpUserList)

	require.Error(t, err)
	require.Equal(t, errors.CodeTenantMismatch, errors.GetCode(err))
	// 租户隔离先于订阅检查，账本不应被触达
	require.Zero(t, gater.calls)
}

func TestAuthorize_SuperAdminBypass(t *testing.T) {
	gater := &fakeGater{level: models.AccessNone}
	svc := services.NewAuthorizationService(gater)

	// 超级管理员无所属企业，跨租户直通，且不受订阅状态拦截
	actor := services.Actor{UserID: 99, BusinessID: nil, Role: models.RoleSuperAdmin}
	err := svc.Authorize(actor, services.Target{BusinessID: 20}, services.OpUserCreate)

	require.NoError(t, err)
	require.Zero(t, gater.calls)
}

func TestAuthorize_RoleHierarchy(t *testing.T) {
	gater := &fakeGater{level: models.AccessFull}
	svc := services.NewAuthorizationService(gater)

	// member 不够 admin 门槛
	err := svc.Authorize(memberActor(1, 10, models.RoleMember), services.Target{BusinessID: 10}, services.OpUserCreate)
	require.Equal(t, errors.CodeInsufficientRole, errors.GetCode(err))

	// admin 通过
	err = svc.Authorize(memberActor(2, 10, models.RoleAdmin), services.Target{BusinessID: 10}, services.OpUserCreate)
	require.NoError(t, err)

	// owner 专属操作
	err = svc.Authorize(memberActor(2, 10, models.RoleAdmin), services.Target{BusinessID: 10}, services.OpBusinessUpdate)
	require.Equal(t, errors.CodeInsufficientRole, errors.GetCode(err))
	err = svc.Authorize(memberActor(3, 10, models.RoleOwner), services.Target{BusinessID: 10}, services.OpBusinessUpdate)
	require.NoError(t, err)
}

func TestAuthorize_SubscriptionGating(t *testing.T) {
	t.Run("欠费拦截新计费资源", func(t *testing.T) {
		svc := services.NewAuthorizationService(&fakeGater{level: models.AccessNoBillable})
		actor := memberActor(1, 10, models.RoleAdmin)

		// 创建用户属计费资源，拒绝
		err := svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserCreate)
		require.Equal(t, errors.CodeSubscriptionGate, errors.GetCode(err))

		// 普通读写放行
		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserUpdate))
		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserList))
	})

	t.Run("已取消保留期内只读", func(t *testing.T) {
		svc := services.NewAuthorizationService(&fakeGater{level: models.AccessReadOnly})
		actor := memberActor(1, 10, models.RoleAdmin)

		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserList))

		err := svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserUpdate)
		require.Equal(t, errors.CodeSubscriptionGate, errors.GetCode(err))
	})

	t.Run("超过保留期全部拒绝", func(t *testing.T) {
		svc := services.NewAuthorizationService(&fakeGater{level: models.AccessNone})
		actor := memberActor(1, 10, models.RoleOwner)

		err := svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpUserList)
		require.Equal(t, errors.CodeSubscriptionGate, errors.GetCode(err))
	})

	t.Run("订阅管理操作豁免拦截", func(t *testing.T) {
		gater := &fakeGater{level: models.AccessNone}
		svc := services.NewAuthorizationService(gater)
		actor := memberActor(1, 10, models.RoleOwner)

		// 取消/重新开通不受订阅状态限制，否则取消后无法再开通
		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpSubscriptionCancel))
		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpSubscriptionResubscribe))
		require.NoError(t, svc.Authorize(actor, services.Target{BusinessID: 10}, services.OpSubscriptionRead))
		require.Zero(t, gater.calls)
	})
}

func TestAuthorize_SelfScoped(t *testing.T) {
	svc := services.NewAuthorizationService(&fakeGater{level: models.AccessFull})

	self := uintPtr(1)
	other := uintPtr(2)

	// 本人通过
	err := svc.Authorize(memberActor(1, 10, models.RoleMember), services.Target{BusinessID: 10, UserID: self}, services.OpSelfDelete)
	require.NoError(t, err)

	// 他人被拒，即便角色更高
	err = svc.Authorize(memberActor(1, 10, models.RoleOwner), services.Target{BusinessID: 10, UserID: other}, services.OpSelfDelete)
	require.Equal(t, errors.CodeInsufficientRole, errors.GetCode(err))

	// 超级管理员直通不适用于self类操作
	admin := services.Actor{UserID: 99, Role: models.RoleSuperAdmin}
	err = svc.Authorize(admin, services.Target{BusinessID: 10, UserID: other}, services.OpSelfDelete)
	require.Equal(t, errors.CodeInsufficientRole, errors.GetCode(err))
}
