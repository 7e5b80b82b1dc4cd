package models_test

import (
	"testing"
	"time"

	"mtsp/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    models.SubscriptionStatus
		to      models.SubscriptionStatus
		allowed bool
	}{
		{models.SubscriptionStatusTrial, models.SubscriptionStatusActive, true},
		{models.SubscriptionStatusTrial, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusTrial, models.SubscriptionStatusPastDue, false},
		{models.SubscriptionStatusActive, models.SubscriptionStatusPastDue, true},
		{models.SubscriptionStatusActive, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusActive, models.SubscriptionStatusTrial, false},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusActive, true},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusTrial, false},
		// cancelled 为终态
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusActive, false},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusTrial, false},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusPastDue, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestNextStatusForEvent(t *testing.T) {
	cases := []struct {
		current models.SubscriptionStatus
		event   string
		next    models.SubscriptionStatus
		ok      bool
	}{
		{models.SubscriptionStatusTrial, models.BillingEventChargeSucceeded, models.SubscriptionStatusActive, true},
		{models.SubscriptionStatusPastDue, models.BillingEventChargeSucceeded, models.SubscriptionStatusActive, true},
		{models.SubscriptionStatusActive, models.BillingEventChargeSucceeded, models.SubscriptionStatusActive, true},
		{models.SubscriptionStatusActive, models.BillingEventChargeFailed, models.SubscriptionStatusPastDue, true},
		{models.SubscriptionStatusTrial, models.BillingEventChargeFailed, models.SubscriptionStatusTrial, false},
		{models.SubscriptionStatusTrial, models.BillingEventCancel, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusActive, models.BillingEventCancel, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusPastDue, models.BillingEventCancel, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusCancelled, models.BillingEventCancel, models.SubscriptionStatusCancelled, false},
		{models.SubscriptionStatusTrial, models.BillingEventTrialExpired, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusActive, models.BillingEventTrialExpired, models.SubscriptionStatusActive, false},
		{models.SubscriptionStatusPastDue, models.BillingEventGraceExpired, models.SubscriptionStatusCancelled, true},
		{models.SubscriptionStatusActive, models.BillingEventGraceExpired, models.SubscriptionStatusActive, false},
		{models.SubscriptionStatusActive, "unknown_event", models.SubscriptionStatusActive, false},
	}

	for _, tc := range cases {
		next, ok := models.NextStatusForEvent(tc.current, tc.event)
		require.Equal(t, tc.ok, ok, "%s + %s", tc.current, tc.event)
		require.Equal(t, tc.next, next, "%s + %s", tc.current, tc.event)
	}
}

func TestSubscription_Advance(t *testing.T) {
	now := time.Now()

	t.Run("支付成功顺延周期并清除欠费标记", func(t *testing.T) {
		pastDue := now.Add(-72 * time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusPastDue, PastDueSince: &pastDue}
		require.NoError(t, sub.Advance(models.BillingEventChargeSucceeded, now))
		require.Equal(t, models.SubscriptionStatusActive, sub.Status)
		require.Equal(t, now, sub.CurrentPeriodStart)
		require.Equal(t, now.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
		require.Nil(t, sub.PastDueSince)
	})

	t.Run("支付失败记录宽限期起点", func(t *testing.T) {
		sub := &models.Subscription{Status: models.SubscriptionStatusActive}
		require.NoError(t, sub.Advance(models.BillingEventChargeFailed, now))
		require.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
		require.NotNil(t, sub.PastDueSince)
		require.Equal(t, now, *sub.PastDueSince)
	})

	t.Run("取消记录取消时间", func(t *testing.T) {
		sub := &models.Subscription{Status: models.SubscriptionStatusActive}
		require.NoError(t, sub.Advance(models.BillingEventCancel, now))
		require.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
		require.NotNil(t, sub.CancelledAt)
	})

	t.Run("试用期外的支付被拒绝", func(t *testing.T) {
		trialEnd := now.Add(-time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusTrial, TrialEnd: &trialEnd}
		require.Error(t, sub.Advance(models.BillingEventChargeSucceeded, now))
		require.Equal(t, models.SubscriptionStatusTrial, sub.Status)
	})

	t.Run("终态上的事件不产生第二次变更", func(t *testing.T) {
		cancelledAt := now.Add(-time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusCancelled, CancelledAt: &cancelledAt}
		require.Error(t, sub.Advance(models.BillingEventCancel, now))
		require.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
		require.Equal(t, cancelledAt, *sub.CancelledAt)
	})
}

func TestSubscription_Access(t *testing.T) {
	now := time.Now()
	retention := 30 * 24 * time.Hour

	t.Run("active放行全部", func(t *testing.T) {
		sub := &models.Subscription{Status: models.SubscriptionStatusActive}
		require.Equal(t, models.AccessFull, sub.Access(now, retention))
	})

	t.Run("试用期内放行全部", func(t *testing.T) {
		trialEnd := now.Add(24 * time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusTrial, TrialEnd: &trialEnd}
		require.Equal(t, models.AccessFull, sub.Access(now, retention))
		require.True(t, sub.InTrialWindow(now))
	})

	t.Run("试用过期按欠费口径", func(t *testing.T) {
		trialEnd := now.Add(-time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusTrial, TrialEnd: &trialEnd}
		require.Equal(t, models.AccessNoBillable, sub.Access(now, retention))
		require.False(t, sub.InTrialWindow(now))
	})

	t.Run("欠费禁止新计费资源", func(t *testing.T) {
		sub := &models.Subscription{Status: models.SubscriptionStatusPastDue}
		require.Equal(t, models.AccessNoBillable, sub.Access(now, retention))
	})

	t.Run("已取消保留期内只读", func(t *testing.T) {
		cancelledAt := now.Add(-7 * 24 * time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusCancelled, CancelledAt: &cancelledAt}
		require.Equal(t, models.AccessReadOnly, sub.Access(now, retention))
	})

	t.Run("已取消超过保留期全部拒绝", func(t *testing.T) {
		cancelledAt := now.Add(-60 * 24 * time.Hour)
		sub := &models.Subscription{Status: models.SubscriptionStatusCancelled, CancelledAt: &cancelledAt}
		require.Equal(t, models.AccessNone, sub.Access(now, retention))
	})
}
