package services_test

import (
	"sync"
	"testing"
	"time"

	"mtsp/internal/models"
	"mtsp/internal/services"

	"github.com/stretchr/testify/require"
)

// fakeMembers 固定成员名单的替身
type fakeMembers struct {
	byBusiness map[uint][]models.User
}

func (f *fakeMembers) ActiveMembers(businessID uint) ([]models.User, error) {
	return f.byBusiness[businessID], nil
}

func newMember(id uint, email string) models.User {
	u := models.User{Email: email}
	u.ID = id
	return u
}

func TestPresence_HeartbeatAndSnapshot(t *testing.T) {
	members := &fakeMembers{byBusiness: map[uint][]models.User{
		10: {newMember(1, "a@x.com"), newMember(2, "b@x.com"), newMember(3, "c@x.com")},
	}}
	tracker := services.NewPresenceTracker(members, time.Minute)

	tracker.Heartbeat(10, 1)
	tracker.Heartbeat(10, 2)

	snapshot, err := tracker.Snapshot(10)
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.TotalCount)
	require.Equal(t, 2, snapshot.OnlineCount)

	online := make(map[uint]bool)
	for _, u := range snapshot.Users {
		online[u.UserID] = u.IsOnline
	}
	require.True(t, online[1])
	require.True(t, online[2])
	require.False(t, online[3])
}

func TestPresence_WindowExpiry(t *testing.T) {
	members := &fakeMembers{byBusiness: map[uint][]models.User{
		10: {newMember(1, "a@x.com")},
	}}
	tracker := services.NewPresenceTracker(members, 30*time.Millisecond)

	tracker.Heartbeat(10, 1)
	time.Sleep(60 * time.Millisecond)

	snapshot, err := tracker.Snapshot(10)
	require.NoError(t, err)
	require.Zero(t, snapshot.OnlineCount)
	// 过期条目惰性跳过但保留最后心跳时间
	require.NotNil(t, snapshot.Users[0].LastSeen)

	// 新心跳重新上线
	tracker.Heartbeat(10, 1)
	snapshot, err = tracker.Snapshot(10)
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.OnlineCount)
}

func TestPresence_TenantScoping(t *testing.T) {
	members := &fakeMembers{byBusiness: map[uint][]models.User{
		10: {newMember(1, "a@x.com")},
		20: {newMember(2, "b@y.com")},
	}}
	tracker := services.NewPresenceTracker(members, time.Minute)

	tracker.Heartbeat(10, 1)

	// 租户20看不到租户10的心跳
	snapshot, err := tracker.Snapshot(20)
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.TotalCount)
	require.Zero(t, snapshot.OnlineCount)

	snapshot, err = tracker.Snapshot(10)
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.OnlineCount)
}

func TestPresence_EvictStale(t *testing.T) {
	members := &fakeMembers{byBusiness: map[uint][]models.User{
		10: {newMember(1, "a@x.com")},
	}}
	tracker := services.NewPresenceTracker(members, 20*time.Millisecond)

	tracker.Heartbeat(10, 1)
	time.Sleep(50 * time.Millisecond)
	tracker.EvictStale()

	snapshot, err := tracker.Snapshot(10)
	require.NoError(t, err)
	require.Zero(t, snapshot.OnlineCount)
	// 清理后条目彻底移除，最后心跳时间不再可见
	require.Nil(t, snapshot.Users[0].LastSeen)
}

func TestPresence_Forget(t *testing.T) {
	members := &fakeMembers{byBusiness: map[uint][]models.User{
		10: {newMember(1, "a@x.com")},
	}}
	tracker := services.NewPresenceTracker(members, time.Minute)

	tracker.Heartbeat(10, 1)
	tracker.Forget(10, 1)

	snapshot, err := tracker.Snapshot(10)
	require.NoError(t, err)
	require.Zero(t, snapshot.OnlineCount)
	require.Nil(t, snapshot.Users[0].LastSeen)
}

func TestPresence_ConcurrentHeartbeats(t *testing.T) {
	users := make([]models.User, 0, 50)
	for i := uint(1); i <= 50; i++ {
		users = append(users, newMember(i, "u@x.com"))
	}
	members := &fakeMembers{byBusiness: map[uint][]models.User{10: users}}
	tracker := services.NewPresenceTracker(members, time.Minute)

	var wg sync.WaitGroup
	for i := uint(1); i <= 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tracker.Heartbeat(10, id)
			}
		}(i)
	}
	wg.Wait()

	snapshot, err := tracker.Snapshot(10)
	require.NoError(t, err)
	require.Equal(t, 50, snapshot.OnlineCount)
}
