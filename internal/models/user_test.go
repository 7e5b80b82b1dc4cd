package models_test

import (
	"testing"

	"mtsp/internal/models"

	"github.com/stretchr/testify/require"
)

func TestRole_LevelOrdering(t *testing.T) {
	ordered := []models.Role{
		models.RoleMember,
		models.RoleManager,
		models.RoleAdmin,
		models.RoleOwner,
		models.RoleSuperAdmin,
	}

	for i := 1; i < len(ordered); i++ {
		require.Greater(t, ordered[i].Level(), ordered[i-1].Level(),
			"%s 应高于 %s", ordered[i], ordered[i-1])
	}
}

func TestRole_IsValid(t *testing.T) {
	require.True(t, models.RoleMember.IsValid())
	require.True(t, models.RoleSuperAdmin.IsValid())
	require.False(t, models.Role("root").IsValid())
	require.False(t, models.Role("").IsValid())
	require.Equal(t, 0, models.Role("root").Level())
}

func TestRole_AtLeast(t *testing.T) {
	require.True(t, models.RoleAdmin.AtLeast(models.RoleAdmin))
	require.True(t, models.RoleOwner.AtLeast(models.RoleMember))
	require.False(t, models.RoleManager.AtLeast(models.RoleAdmin))
	require.False(t, models.RoleMember.AtLeast(models.RoleOwner))
}

func TestRole_CanAssign(t *testing.T) {
	// 不得授予高于自身的角色
	require.True(t, models.RoleAdmin.CanAssign(models.RoleMember))
	require.True(t, models.RoleAdmin.CanAssign(models.RoleAdmin))
	require.False(t, models.RoleAdmin.CanAssign(models.RoleOwner))
	require.True(t, models.RoleOwner.CanAssign(models.RoleOwner))

	// super_admin 仅能由 super_admin 授予
	require.False(t, models.RoleOwner.CanAssign(models.RoleSuperAdmin))
	require.True(t, models.RoleSuperAdmin.CanAssign(models.RoleSuperAdmin))

	// 无效角色不可授予
	require.False(t, models.RoleSuperAdmin.CanAssign(models.Role("root")))
}

func TestUserStatus_IsValid(t *testing.T) {
	require.True(t, models.UserStatusActive.IsValid())
	require.True(t, models.UserStatusInactive.IsValid())
	require.True(t, models.UserStatusSuspended.IsValid())
	require.False(t, models.UserStatus("deleted").IsValid())
}

func TestUser_PasswordHashing(t *testing.T) {
	user := &models.User{}
	require.NoError(t, user.SetPassword("secret123"))
	require.NotEmpty(t, user.PasswordHash)
	require.NotEqual(t, "secret123", user.PasswordHash)

	require.True(t, user.CheckPassword("secret123"))
	require.False(t, user.CheckPassword("wrong"))
}

func TestUser_BelongsTo(t *testing.T) {
	bid := uint(7)
	user := &models.User{BusinessID: &bid}
	require.True(t, user.BelongsTo(7))
	require.False(t, user.BelongsTo(8))

	// 超级管理员无所属企业
	admin := &models.User{Role: models.RoleSuperAdmin}
	require.False(t, admin.BelongsTo(7))
	require.True(t, admin.IsSuperAdmin())
}
