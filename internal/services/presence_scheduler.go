package services

import (
	"fmt"

	"mtsp/pkg/config"
	"mtsp/pkg/logger"

	"github.com/robfig/cron/v3"
)

// PresenceScheduler 在线状态清理调度器 - 定时回收过期心跳条目
type PresenceScheduler struct {
	tracker *PresenceTracker
	cron    *cron.Cron
	running bool
}

// NewPresenceScheduler 创建在线状态清理调度器
func NewPresenceScheduler(tracker *PresenceTracker) *PresenceScheduler {
	return &PresenceScheduler{
		tracker: tracker,
		cron:    cron.New(),
	}
}

// Start 启动调度器
func (s *PresenceScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	interval := config.GetConfig().Presence.EvictInterval
	_, err := s.cron.AddFunc(interval, s.tracker.EvictStale)
	if err != nil {
		return fmt.Errorf("注册在线状态清理任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("在线状态清理调度器启动成功，周期 %s", interval)
	return nil
}

// Stop 停止调度器
func (s *PresenceScheduler) Stop() {
	if !s.running {
		return
	}

	logger.GetLogger().Info("停止在线状态清理调度器")
	s.cron.Stop()
	s.running = false
}
