package errors_test

import (
	"fmt"
	"testing"

	"mtsp/pkg/errors"

	"github.com/stretchr/testify/require"
)

func TestAppError_Codes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errors.NewValidation("参数错误"), errors.CodeValidation},
		{errors.NewDuplicateEmail("a@x.com"), errors.CodeDuplicateEmail},
		{errors.NewCapacityExceeded("席位已满"), errors.CodeCapacityExceeded},
		{errors.NewTenantMismatch(), errors.CodeTenantMismatch},
		{errors.NewInsufficientRole("权限不足"), errors.CodeInsufficientRole},
		{errors.NewOwnershipConstraint("唯一owner"), errors.CodeOwnershipConstraint},
		{errors.NewSubscriptionGate("已取消"), errors.CodeSubscriptionGate},
		{errors.NewRecordNotFound("记录不存在"), errors.CodeRecordNotFound},
	}

	for _, tc := range cases {
		require.Equal(t, tc.code, errors.GetCode(tc.err))
		require.True(t, errors.Is(tc.err, tc.code))
	}
}

func TestGetCode_WrappedError(t *testing.T) {
	inner := errors.NewCapacityExceeded("席位已满")
	wrapped := fmt.Errorf("创建用户失败: %w", inner)

	require.Equal(t, errors.CodeCapacityExceeded, errors.GetCode(wrapped))
	require.True(t, errors.Is(wrapped, errors.CodeCapacityExceeded))
}

func TestGetCode_UnknownError(t *testing.T) {
	require.Equal(t, errors.CodeServerError, errors.GetCode(fmt.Errorf("boom")))
	require.False(t, errors.Is(fmt.Errorf("boom"), errors.CodeValidation))
}
