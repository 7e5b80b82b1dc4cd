package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// BillingQueue 账单事件收件箱 - 外部计费方推送，核心侧消费
type BillingQueue struct {
	client *redis.Client
	prefix string
}

// BillingEventMessage 队列中的账单事件消息
type BillingEventMessage struct {
	EventID    string                 `json:"event_id"`   // 幂等键，由计费方提供
	EventType  string                 `json:"event_type"` // charge_succeeded / charge_failed / cancel
	BusinessID uint                   `json:"business_id"`
	Payload    map[string]interface{} `json:"payload"`
	Received   int64                  `json:"received"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewBillingQueue 创建账单事件队列实例
func NewBillingQueue(config *Config) *BillingQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "mtsp:billing"
	}

	return &BillingQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *BillingQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *BillingQueue) Ping() error {
	ctx := context.Background()
	return q.client.Ping(ctx).Err()
}

func (q *BillingQueue) queueKey() string {
	return q.prefix + ":events"
}

// Enqueue 将账单事件加入收件箱（左侧入队）
func (q *BillingQueue) Enqueue(eventID, eventType string, businessID uint, payload map[string]interface{}) error {
	ctx := context.Background()

	message := BillingEventMessage{
		EventID:    eventID,
		EventType:  eventType,
		BusinessID: businessID,
		Payload:    payload,
		Received:   time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化账单事件失败: %v", err)
	}

	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("账单事件入队失败: %v", err)
	}

	return nil
}

// Dequeue 阻塞式取出一条账单事件，超时返回 (nil, nil)
func (q *BillingQueue) Dequeue(ctx context.Context, timeout time.Duration) (*BillingEventMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// BRPop 返回 [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("账单事件出队结果格式异常")
	}

	var message BillingEventMessage
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("反序列化账单事件失败: %v", err)
	}

	return &message, nil
}

// Length 当前收件箱长度
func (q *BillingQueue) Length() (int64, error) {
	ctx := context.Background()
	return q.client.LLen(ctx, q.queueKey()).Result()
}
