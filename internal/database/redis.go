package database

import (
	"sync"

	"mtsp/pkg/config"
	"mtsp/pkg/queue"
)

var (
	billingQueueInstance *queue.BillingQueue
	billingQueueOnce     sync.Once
)

// GetBillingQueue 获取账单事件队列的单例实例
func GetBillingQueue() *queue.BillingQueue {
	billingQueueOnce.Do(func() {
		cfg := config.GetConfig()
		billingQueueInstance = queue.NewBillingQueue(&queue.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return billingQueueInstance
}

// CloseBillingQueue 关闭Redis连接
func CloseBillingQueue() error {
	if billingQueueInstance != nil {
		return billingQueueInstance.Close()
	}
	return nil
}
