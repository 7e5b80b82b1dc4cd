package handlers

import (
	"strconv"

	"mtsp/internal/middleware"
	"mtsp/internal/services"
	"mtsp/pkg/pagination"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

type BusinessHandler struct {
	service     *services.BusinessService
	authService *services.AuthorizationService
	onboarding  SignupService
}

func NewBusinessHandler(service *services.BusinessService, authService *services.AuthorizationService, onboarding SignupService) *BusinessHandler {
	return &BusinessHandler{
		service:     service,
		authService: authService,
		onboarding:  onboarding,
	}
}

type UpdateBusinessRequest struct {
	Name         *string `json:"name"`
	SizeCategory *string `json:"size_category"`
	Country      *string `json:"country"`
	City         *string `json:"city"`
	Address      *string `json:"address"`
	MaxSeats     *int    `json:"max_seats"`
}

// Create 创建企业（平台管理入口）。
// 与自助注册复用同一条开通事务：企业、首位 owner 与试用订阅在一个事务内落库，
// 不会产生没有订阅记录的空壳租户。
func (h *BusinessHandler) Create(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.onboarding.Signup(services.SignupParams{
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
		SizeCategory: req.SizeCategory,
		Country:      req.Country,
		City:         req.City,
		Address:      req.Address,
		MaxSeats:     req.MaxSeats,
		Plan:         req.Plan,
		Amount:       req.Amount,
		Currency:     req.Currency,

		OwnerEmail:     req.OwnerEmail,
		OwnerPassword:  req.OwnerPassword,
		OwnerFirstName: req.OwnerFirstName,
		OwnerLastName:  req.OwnerLastName,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "企业创建成功", result)
}

// GetByID 获取企业详情
func (h *BusinessHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(id)}
	if err := h.authService.Authorize(actor, target, services.OpBusinessRead); err != nil {
		response.HandleError(c, err)
		return
	}

	business, err := h.service.GetByID(uint(id))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, business)
}

// GetAll 分页获取企业列表（跨租户，仅平台超级管理员）
func (h *BusinessHandler) GetAll(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	industry := c.Query("industry")
	keyword := c.Query("keyword")

	businesses, total, err := h.service.GetWithFiltersAndPage(industry, keyword, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, total)
	response.SuccessWithPage(c, businesses, pageInfo)
}

// Update 更新企业属性。降低席位上限不得低于当前活跃成员数
func (h *BusinessHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(id)}
	if err := h.authService.Authorize(actor, target, services.OpBusinessUpdate); err != nil {
		response.HandleError(c, err)
		return
	}

	business, err := h.service.Update(uint(id), services.UpdateBusinessParams{
		Name:         req.Name,
		SizeCategory: req.SizeCategory,
		Country:      req.Country,
		City:         req.City,
		Address:      req.Address,
		MaxSeats:     req.MaxSeats,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, business)
}

// Delete 删除企业及其全部关联数据（仅平台超级管理员）
func (h *BusinessHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.service.Delete(uint(id)); err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// GetStats 平台级企业统计（仅平台超级管理员）
func (h *BusinessHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats()
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, stats)
}
