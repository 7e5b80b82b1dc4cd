package handlers

import (
	"mtsp/internal/services"
	"mtsp/pkg/queue"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

// BillingHandler 计费系统回调入口。请求须携带 X-Billing-Key，
// 由中间件校验，不走用户JWT认证
type BillingHandler struct {
	subscriptionService *services.SubscriptionService
	billingQueue        *queue.BillingQueue
}

func NewBillingHandler(subscriptionService *services.SubscriptionService, billingQueue *queue.BillingQueue) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		billingQueue:        billingQueue,
	}
}

type BillingEventRequest struct {
	EventID    string                 `json:"event_id" binding:"required"`
	EventType  string                 `json:"event_type" binding:"required"`
	BusinessID uint                   `json:"business_id" binding:"required"`
	Payload    map[string]interface{} `json:"payload"`
}

// Receive 同步处理计费事件。按event_id幂等，重放返回当前状态
func (h *BillingHandler) Receive(c *gin.Context) {
	var req BillingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	sub, err := h.subscriptionService.ApplyBillingEvent(req.BusinessID, req.EventType, req.EventID, req.Payload)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, sub)
}

// Enqueue 事件入队，由后台消费者异步处理。计费方只需入队成功即可确认
func (h *BillingHandler) Enqueue(c *gin.Context) {
	var req BillingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.billingQueue.Enqueue(req.EventID, req.EventType, req.BusinessID, req.Payload); err != nil {
		response.ServerError(c, "事件入队失败")
		return
	}

	response.SuccessWithMessage(c, "事件已入队", gin.H{
		"event_id": req.EventID,
	})
}

// QueueStatus 查看计费事件队列积压情况（仅平台超级管理员）
func (h *BillingHandler) QueueStatus(c *gin.Context) {
	length, err := h.billingQueue.Length()
	if err != nil {
		response.ServerError(c, "查询队列失败")
		return
	}

	response.Success(c, gin.H{
		"pending": length,
	})
}
