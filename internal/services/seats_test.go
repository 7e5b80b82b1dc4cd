package services

import (
	"testing"

	"mtsp/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSeatLimitFor(t *testing.T) {
	business := &models.Business{MaxSeats: 2}

	require.Equal(t, int64(2), seatLimitFor(business, models.RoleAdmin, 1000))
	require.Equal(t, int64(2), seatLimitFor(business, models.RoleOwner, 1000))
	// 超级管理员按平台绝对上限放行
	require.Equal(t, int64(1000), seatLimitFor(business, models.RoleSuperAdmin, 1000))
}

func TestReoccupiesSeat(t *testing.T) {
	// 只有回到 active 的变更需要重新占用席位
	require.True(t, reoccupiesSeat(models.UserStatusInactive, models.UserStatusActive))
	require.True(t, reoccupiesSeat(models.UserStatusSuspended, models.UserStatusActive))

	require.False(t, reoccupiesSeat(models.UserStatusActive, models.UserStatusActive))
	require.False(t, reoccupiesSeat(models.UserStatusActive, models.UserStatusInactive))
	require.False(t, reoccupiesSeat(models.UserStatusInactive, models.UserStatusSuspended))
}

// 容量为 2 的企业：停用一人、补入一人后，原用户重新激活必须被容量检查拦下。
func TestReactivationCountsAgainstCapacity(t *testing.T) {
	business := &models.Business{MaxSeats: 2}

	// B 停用、C 入座后活跃席位已满
	activeSeats := int64(2)
	limit := seatLimitFor(business, models.RoleOwner, 1000)

	require.True(t, reoccupiesSeat(models.UserStatusInactive, models.UserStatusActive))
	require.True(t, activeSeats >= limit, "重新激活前席位已满，必须返回容量不足")
}
