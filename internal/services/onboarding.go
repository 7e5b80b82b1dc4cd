package services

import (
	"fmt"
	"strings"

	"mtsp/internal/database"
	"mtsp/internal/models"
	"mtsp/pkg/errors"
	"mtsp/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OnboardingService 自助注册 - 单个事务内原子创建企业、首位用户（owner）
// 与试用订阅，三者要么全部成功要么全部回滚
type OnboardingService struct {
	db                  *gorm.DB
	businessService     *BusinessService
	userService         *UserService
	subscriptionService *SubscriptionService
	log                 *logrus.Logger
}

func NewOnboardingService(businessService *BusinessService, userService *UserService, subscriptionService *SubscriptionService) *OnboardingService {
	return &OnboardingService{
		db:                  database.GetDB(),
		businessService:     businessService,
		userService:         userService,
		subscriptionService: subscriptionService,
		log:                 logger.GetLogger(),
	}
}

// SignupParams 注册参数
type SignupParams struct {
	BusinessName string
	Industry     string
	SizeCategory string
	Country      string
	City         string
	Address      string
	MaxSeats     int
	Plan         string
	Amount       int64
	Currency     string

	OwnerEmail     string
	OwnerPassword  string
	OwnerFirstName string
	OwnerLastName  string
}

// SignupResult 注册结果
type SignupResult struct {
	Business     *models.Business     `json:"business"`
	Owner        *models.User         `json:"owner"`
	Subscription *models.Subscription `json:"subscription"`
}

// Signup 自助注册入口
func (s *OnboardingService) Signup(params SignupParams) (*SignupResult, error) {
	if err := s.businessService.validateRequired(params.BusinessName, params.Industry); err != nil {
		return nil, err
	}
	if err := s.userService.validateCreateParams(CreateUserParams{
		Email:     params.OwnerEmail,
		Password:  params.OwnerPassword,
		FirstName: params.OwnerFirstName,
		LastName:  params.OwnerLastName,
		Role:      models.RoleOwner,
	}); err != nil {
		return nil, err
	}
	if params.SizeCategory != "" && !models.IsValidSizeCategory(params.SizeCategory) {
		return nil, errors.NewValidation("企业规模只能是 micro、small、medium 或 large")
	}
	if params.MaxSeats <= 0 {
		params.MaxSeats = 5
	}
	if params.Plan == "" {
		params.Plan = "standard"
	}
	if params.Currency == "" {
		params.Currency = "EUR"
	}

	email := strings.ToLower(params.OwnerEmail)

	var result *SignupResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 邮箱平台全局唯一
		var emailCount int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&emailCount).Error; err != nil {
			return err
		}
		if emailCount > 0 {
			return errors.NewDuplicateEmail(email)
		}

		business := &models.Business{
			Name:         params.BusinessName,
			Industry:     params.Industry,
			SizeCategory: params.SizeCategory,
			Country:      params.Country,
			City:         params.City,
			Address:      params.Address,
			MaxSeats:     params.MaxSeats,
		}
		if err := tx.Create(business).Error; err != nil {
			return err
		}

		owner := &models.User{
			Email:      email,
			FirstName:  params.OwnerFirstName,
			LastName:   params.OwnerLastName,
			Role:       models.RoleOwner,
			Status:     models.UserStatusActive,
			BusinessID: &business.ID,
		}
		if err := owner.SetPassword(params.OwnerPassword); err != nil {
			return fmt.Errorf("密码加密失败: %v", err)
		}
		if err := tx.Create(owner).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return errors.NewDuplicateEmail(email)
			}
			return err
		}

		subscription, err := s.subscriptionService.CreateTrial(tx, business.ID, params.Plan, params.Amount, params.Currency)
		if err != nil {
			return err
		}

		business.SeatCount = 1
		result = &SignupResult{
			Business:     business,
			Owner:        owner,
			Subscription: subscription,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"event":       "business_onboarded",
		"business_id": result.Business.ID,
		"owner_id":    result.Owner.ID,
	}).Info("企业注册完成")
	return result, nil
}
