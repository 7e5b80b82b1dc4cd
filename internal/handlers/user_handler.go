package handlers

import (
	"strconv"

	"mtsp/internal/middleware"
	"mtsp/internal/models"
	"mtsp/internal/services"
	"mtsp/pkg/pagination"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service     *services.UserService
	authService *services.AuthorizationService
	tracker     *services.PresenceTracker
}

func NewUserHandler(service *services.UserService, authService *services.AuthorizationService, tracker *services.PresenceTracker) *UserHandler {
	return &UserHandler{
		service:     service,
		authService: authService,
		tracker:     tracker,
	}
}

// forgetPresence 用户离开活跃名单后移除其心跳记录
func (h *UserHandler) forgetPresence(user *models.User) {
	if user.BusinessID != nil {
		h.tracker.Forget(*user.BusinessID, user.ID)
	}
}

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6,max=50"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Status    *string `json:"status"`
	Role      *string `json:"role"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6,max=50"`
}

type TransferOwnershipRequest struct {
	NewOwnerID uint `json:"new_owner_id" binding:"required"`
}

// targetFor 从目标用户构造授权目标。平台超级管理员用户无所属企业，
// 目标企业记为0，普通操作者会在租户隔离检查处被拒绝
func targetFor(user *models.User) services.Target {
	target := services.Target{UserID: &user.ID}
	if user.BusinessID != nil {
		target.BusinessID = *user.BusinessID
	}
	return target
}

// ========== 基础CRUD方法 ==========

// Create 在指定企业内创建用户，席位检查在服务层事务内完成
func (h *UserHandler) Create(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpUserCreate); err != nil {
		response.HandleError(c, err)
		return
	}

	user, err := h.service.Create(uint(businessID), services.CreateUserParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.Role(req.Role),
	}, actor)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, user)
}

// GetByID 获取用户详情
func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	user, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	actor := middleware.GetActor(c)
	if err := h.authService.Authorize(actor, targetFor(user), services.OpUserRead); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, user)
}

// GetByBusiness 分页获取企业成员列表
func (h *UserHandler) GetByBusiness(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpUserList); err != nil {
		response.HandleError(c, err)
		return
	}

	params := pagination.ParsePageParams(c)
	status := c.Query("status")
	keyword := c.Query("keyword")

	bid := uint(businessID)
	users, total, err := h.service.GetWithFiltersAndPage(&bid, status, keyword, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, total)
	response.SuccessWithPage(c, users, pageInfo)
}

// Update 更新用户属性。角色变更走服务层的层级校验，
// 直接改为owner会被拒绝，必须走所有权转移
func (h *UserHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	actor := middleware.GetActor(c)
	if err := h.authService.Authorize(actor, targetFor(user), services.OpUserUpdate); err != nil {
		response.HandleError(c, err)
		return
	}

	params := services.UpdateUserParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Status != nil {
		status := models.UserStatus(*req.Status)
		params.Status = &status
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		params.Role = &role
	}

	updated, err := h.service.Update(uint(id), params, actor)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if updated.Status != models.UserStatusActive {
		h.forgetPresence(updated)
	}

	response.Success(c, updated)
}

// Delete 删除用户。唯一owner不可删除，须先转移所有权
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	user, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	actor := middleware.GetActor(c)
	if err := h.authService.Authorize(actor, targetFor(user), services.OpUserDelete); err != nil {
		response.HandleError(c, err)
		return
	}

	if err := h.service.Delete(uint(id), actor); err != nil {
		response.HandleError(c, err)
		return
	}
	h.forgetPresence(user)

	response.SuccessWithMessage(c, "删除成功", nil)
}

// DeleteSelf 注销本人账号。唯一owner同样受所有权约束保护
func (h *UserHandler) DeleteSelf(c *gin.Context) {
	actor := middleware.GetActor(c)
	user := middleware.GetUser(c)
	if user == nil {
		response.Unauthorized(c, "未登录")
		return
	}

	if err := h.authService.Authorize(actor, targetFor(user), services.OpSelfDelete); err != nil {
		response.HandleError(c, err)
		return
	}

	if err := h.service.Delete(user.ID, actor); err != nil {
		response.HandleError(c, err)
		return
	}
	h.forgetPresence(user)

	response.SuccessWithMessage(c, "账号已注销", nil)
}

// ========== 状态与密码管理 ==========

func (h *UserHandler) setStatus(c *gin.Context, apply func(id uint, actor services.Actor) (*models.User, error)) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	user, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	actor := middleware.GetActor(c)
	if err := h.authService.Authorize(actor, targetFor(user), services.OpUserUpdate); err != nil {
		response.HandleError(c, err)
		return
	}

	updated, err := apply(uint(id), actor)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if updated.Status != models.UserStatusActive {
		h.forgetPresence(updated)
	}

	response.Success(c, updated)
}

// Activate 激活用户
func (h *UserHandler) Activate(c *gin.Context) {
	h.setStatus(c, h.service.Activate)
}

// Deactivate 停用用户，停用后不再占用席位
func (h *UserHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, h.service.Deactivate)
}

// Suspend 暂停用户
func (h *UserHandler) Suspend(c *gin.Context) {
	h.setStatus(c, h.service.Suspend)
}

// ResetPassword 重置用户密码
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	actor := middleware.GetActor(c)
	if err := h.authService.Authorize(actor, targetFor(user), services.OpUserUpdate); err != nil {
		response.HandleError(c, err)
		return
	}

	if _, err := h.service.SetPassword(uint(id), req.NewPassword); err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "密码重置成功", nil)
}

// TransferOwnership 所有权转移：同一事务内旧owner降为admin、新owner晋升
func (h *UserHandler) TransferOwnership(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpBusinessUpdate); err != nil {
		response.HandleError(c, err)
		return
	}

	if err := h.service.TransferOwnership(uint(businessID), req.NewOwnerID, actor); err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "所有权转移成功", nil)
}

// GetStats 企业成员统计
func (h *UserHandler) GetStats(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpUserList); err != nil {
		response.HandleError(c, err)
		return
	}

	stats, err := h.service.GetStats(uint(businessID))
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, stats)
}
