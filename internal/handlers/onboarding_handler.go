package handlers

import (
	"mtsp/internal/services"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SignupService 企业开通入口。自助注册与平台管理端建企业走同一条原子事务
type SignupService interface {
	Signup(params services.SignupParams) (*services.SignupResult, error)
}

type OnboardingHandler struct {
	service SignupService
}

func NewOnboardingHandler(service SignupService) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

type SignupRequest struct {
	BusinessName string `json:"business_name" binding:"required"`
	Industry     string `json:"industry" binding:"required"`
	SizeCategory string `json:"size_category"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Address      string `json:"address"`
	MaxSeats     int    `json:"max_seats"`
	Plan         string `json:"plan"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`

	OwnerEmail     string `json:"owner_email" binding:"required,email"`
	OwnerPassword  string `json:"owner_password" binding:"required,min=6,max=50"`
	OwnerFirstName string `json:"owner_first_name" binding:"required"`
	OwnerLastName  string `json:"owner_last_name" binding:"required"`
}

// Signup 自助注册：原子创建企业、owner用户与试用订阅
func (h *OnboardingHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			errorMsg := "参数验证失败"
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "BusinessName":
					errorMsg = "企业名称不能为空"
				case "Industry":
					errorMsg = "行业不能为空"
				case "OwnerEmail":
					errorMsg = "邮箱格式不正确"
				case "OwnerPassword":
					errorMsg = "密码长度必须在6-50个字符之间"
				case "OwnerFirstName", "OwnerLastName":
					errorMsg = "姓名不能为空"
				}
				break // 只返回第一个错误
			}
			response.BadRequest(c, errorMsg)
			return
		}
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.service.Signup(services.SignupParams{
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

	response.SuccessWithMessage(c, "注册成功", result)
}
