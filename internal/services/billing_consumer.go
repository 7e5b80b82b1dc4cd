package services

import (
	"context"
	"sync"
	"time"

	"mtsp/pkg/logger"
	"mtsp/pkg/queue"

	"github.com/sirupsen/logrus"
)

// BillingConsumer 账单事件消费者 - 从Redis收件箱取出外部计费方推送的事件，
// 逐条交给订阅账本的幂等入口处理。处理失败的事件仅记录日志，
// 依赖计费方按 event_id 重投，幂等机制保证重投不重复生效。
type BillingConsumer struct {
	queue               *queue.BillingQueue
	subscriptionService *SubscriptionService
	log                 *logrus.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewBillingConsumer 创建账单事件消费者
func NewBillingConsumer(billingQueue *queue.BillingQueue, subscriptionService *SubscriptionService) *BillingConsumer {
	return &BillingConsumer{
		queue:               billingQueue,
		subscriptionService: subscriptionService,
		log:                 logger.GetLogger(),
	}
}

// Start 启动消费循环
func (c *BillingConsumer) Start() {
	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.loop(ctx)

	c.log.Info("账单事件消费者已启动")
}

// Stop 停止消费循环并等待收尾
func (c *BillingConsumer) Stop() {
	if !c.running {
		return
	}

	c.cancel()
	c.wg.Wait()
	c.running = false
	c.log.Info("账单事件消费者已停止")
}

func (c *BillingConsumer) loop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		message, err := c.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Errorf("账单事件出队失败: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if message == nil {
			continue
		}

		if _, err := c.subscriptionService.ApplyBillingEvent(
			message.BusinessID, message.EventType, message.EventID, message.Payload); err != nil {
			c.log.WithFields(logrus.Fields{
				"event_id":    message.EventID,
				"event_type":  message.EventType,
				"business_id": message.BusinessID,
			}).Errorf("账单事件处理失败: %v", err)
		}
	}
}
