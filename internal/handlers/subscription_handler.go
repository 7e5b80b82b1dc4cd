package handlers

import (
	"strconv"

	"mtsp/internal/middleware"
	"mtsp/internal/services"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service     *services.SubscriptionService
	authService *services.AuthorizationService
}

func NewSubscriptionHandler(service *services.SubscriptionService, authService *services.AuthorizationService) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:     service,
		authService: authService,
	}
}

type ResubscribeRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// GetCurrent 获取企业当前订阅
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpSubscriptionRead); err != nil {
		response.HandleError(c, err)
		return
	}

	sub, err := h.service.GetCurrent(uint(businessID))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, sub)
}

// GetHistory 获取企业订阅历史（含已被替换的订阅记录）
func (h *SubscriptionHandler) GetHistory(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpSubscriptionRead); err != nil {
		response.HandleError(c, err)
		return
	}

	history, err := h.service.GetHistory(uint(businessID))
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, history)
}

// Cancel 主动取消订阅，与计费回调共用同一状态机入口
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpSubscriptionCancel); err != nil {
		response.HandleError(c, err)
		return
	}

	sub, err := h.service.Cancel(uint(businessID), actor.UserID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅已取消", sub)
}

// Resubscribe 已取消状态下重新开通，生成新的当前订阅记录
func (h *SubscriptionHandler) Resubscribe(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req ResubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpSubscriptionResubscribe); err != nil {
		response.HandleError(c, err)
		return
	}

	sub, err := h.service.Resubscribe(uint(businessID), req.Plan, req.Amount, req.Currency)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅已重新开通", sub)
}
