package services

import (
	"sync"
	"time"

	"mtsp/internal/models"
	"mtsp/pkg/logger"

	"github.com/sirupsen/logrus"
)

// MembershipProvider 在线状态对身份存储的唯一依赖面：
// 只需要成员关系，不依赖订阅账本
type MembershipProvider interface {
	ActiveMembers(businessID uint) ([]models.User, error)
}

// UserPresence 单个用户的在线状态
type UserPresence struct {
	UserID   uint       `json:"user_id"`
	Email    string     `json:"email"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

// PresenceSnapshot 租户级在线状态快照
type PresenceSnapshot struct {
	OnlineCount int            `json:"online_count"`
	TotalCount  int            `json:"total_count"`
	Users       []UserPresence `json:"users"`
}

// PresenceTracker 在线状态跟踪 - 进程内临时存储，按租户显式分键，不落库。
// 心跳为最后写入者胜出，用户在滑动窗口内有心跳即视为在线。
// 过期条目在读取时惰性跳过，并由定时清理任务兜底回收。
type PresenceTracker struct {
	mu      sync.RWMutex
	window  time.Duration
	tenants map[uint]map[uint]time.Time // businessID -> userID -> 最后心跳时间
	members MembershipProvider
	log     *logrus.Logger
}

func NewPresenceTracker(members MembershipProvider, window time.Duration) *PresenceTracker {
	return &PresenceTracker{
		window:  window,
		tenants: make(map[uint]map[uint]time.Time),
		members: members,
		log:     logger.GetLogger(),
	}
}

// Heartbeat 记录一次心跳，最后写入者胜出，无跨用户顺序要求
func (t *PresenceTracker) Heartbeat(businessID, userID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tenant, ok := t.tenants[businessID]
	if !ok {
		tenant = make(map[uint]time.Time)
		t.tenants[businessID] = tenant
	}
	tenant[userID] = time.Now()
}

// Snapshot 租户在线状态快照（调用方必须先通过授权网关的租户隔离检查）
func (t *PresenceTracker) Snapshot(businessID uint) (*PresenceSnapshot, error) {
	users, err := t.members.ActiveMembers(businessID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t.mu.RLock()
	tenant := t.tenants[businessID]
	snapshot := &PresenceSnapshot{
		TotalCount: len(users),
		Users:      make([]UserPresence, 0, len(users)),
	}
	for _, user := range users {
		presence := UserPresence{
			UserID: user.ID,
			Email:  user.Email,
		}
		if lastSeen, ok := tenant[user.ID]; ok {
			seen := lastSeen
			presence.LastSeen = &seen
			// 滑动窗口内有心跳即在线，过期条目惰性跳过
			if now.Sub(lastSeen) <= t.window {
				presence.IsOnline = true
				snapshot.OnlineCount++
			}
		}
		snapshot.Users = append(snapshot.Users, presence)
	}
	t.mu.RUnlock()

	return snapshot, nil
}

// EvictStale 回收超出窗口的心跳条目（定时清理任务调用）
func (t *PresenceTracker) EvictStale() {
	cutoff := time.Now().Add(-t.window)
	evicted := 0

	t.mu.Lock()
	for businessID, tenant := range t.tenants {
		for userID, lastSeen := range tenant {
			if lastSeen.Before(cutoff) {
				delete(tenant, userID)
				evicted++
			}
		}
		if len(tenant) == 0 {
			delete(t.tenants, businessID)
		}
	}
	t.mu.Unlock()

	if evicted > 0 {
		t.log.Debugf("在线状态清理：回收 %d 条过期心跳", evicted)
	}
}

// Forget 移除单个用户的心跳记录（用户删除/停用时调用）
func (t *PresenceTracker) Forget(businessID, userID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tenant, ok := t.tenants[businessID]; ok {
		delete(tenant, userID)
	}
}
