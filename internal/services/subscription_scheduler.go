package services

import (
	"fmt"

	"mtsp/pkg/config"
	"mtsp/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SubscriptionScheduler 订阅状态扫描调度器 - 定时推进试用过期与宽限期过期
type SubscriptionScheduler struct {
	subscriptionService *SubscriptionService
	cron                *cron.Cron
	running             bool
}

// NewSubscriptionScheduler 创建订阅扫描调度器
func NewSubscriptionScheduler(subscriptionService *SubscriptionService) *SubscriptionScheduler {
	return &SubscriptionScheduler{
		subscriptionService: subscriptionService,
		cron:                cron.New(),
	}
}

// Start 启动调度器
func (s *SubscriptionScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	interval := config.GetConfig().Subscription.SweepInterval
	_, err := s.cron.AddFunc(interval, s.sweep)
	if err != nil {
		return fmt.Errorf("注册订阅扫描任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("订阅状态扫描调度器启动成功，周期 %s", interval)
	return nil
}

// Stop 停止调度器
func (s *SubscriptionScheduler) Stop() {
	if !s.running {
		return
	}

	logger.GetLogger().Info("停止订阅状态扫描调度器")
	s.cron.Stop()
	s.running = false
}

// sweep 单轮扫描：先推进试用过期，再推进宽限期过期
func (s *SubscriptionScheduler) sweep() {
	if err := s.subscriptionService.ExpireTrials(); err != nil {
		logger.GetLogger().Errorf("试用过期扫描失败: %v", err)
	}
	if err := s.subscriptionService.ExpireGracePeriods(); err != nil {
		logger.GetLogger().Errorf("宽限期过期扫描失败: %v", err)
	}
}
