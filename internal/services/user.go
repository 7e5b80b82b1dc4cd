package services

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mtsp/internal/database"
	"mtsp/internal/models"
	"mtsp/pkg/config"
	"mtsp/pkg/errors"
	"mtsp/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService 身份与角色存储 - 用户记录、凭证与角色指派的归属方
type UserService struct {
	db              *gorm.DB
	log             *logrus.Logger
	seatHardCeiling int
}

// UserStats 用户统计信息
type UserStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Suspended int64 `json:"suspended"`
}

func NewUserService() *UserService {
	return &UserService{
		db:              database.GetDB(),
		log:             logger.GetLogger(),
		seatHardCeiling: config.GetConfig().Subscription.SeatHardCeiling,
	}
}

// CreateUserParams 创建用户参数
type CreateUserParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// UpdateUserParams 更新用户补丁，nil 表示不修改
type UpdateUserParams struct {
	FirstName *string
	LastName  *string
	Status    *models.UserStatus
	Role      *models.Role
}

// seatLimitFor 本次写入适用的席位上限。
// 超级管理员可以超出企业自身的 max_seats，但不得超过平台绝对上限。
func seatLimitFor(business *models.Business, actorRole models.Role, hardCeiling int) int64 {
	if actorRole == models.RoleSuperAdmin {
		return int64(hardCeiling)
	}
	return int64(business.MaxSeats)
}

// reoccupiesSeat 状态变更是否让用户重新回到活跃名单（重新占用席位）
func reoccupiesSeat(from, to models.UserStatus) bool {
	return from != models.UserStatusActive && to == models.UserStatusActive
}

// ========== 基础CRUD方法 ==========

// Create 创建用户。
// 席位检查与写入在同一事务内对企业行持 FOR UPDATE 锁，
// 两个并发请求争抢最后一个席位时只有一个成功。
func (s *UserService) Create(businessID uint, params CreateUserParams, actor Actor) (*models.User, error) {
	if err := s.validateCreateParams(params); err != nil {
		return nil, err
	}
	if params.Role == models.RoleSuperAdmin {
		return nil, errors.NewValidation("超级管理员不能挂靠企业，请使用专用初始化流程")
	}
	if !actor.Role.CanAssign(params.Role) {
		s.log.WithFields(logrus.Fields{
			"event":       "insufficient_role",
			"actor_id":    actor.UserID,
			"actor_role":  actor.Role,
			"target_role": params.Role,
		}).Warn("越级授予角色被拒绝")
		return nil, errors.NewInsufficientRole("不能授予高于自身的角色")
	}

	email := strings.ToLower(params.Email)

	var result *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 锁定企业行，串行化同企业的席位检查与写入
		var business models.Business
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, businessID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("企业不存在")
			}
			return err
		}

		// 持锁重算活跃席位
		seats, err := countActiveSeats(tx, businessID)
		if err != nil {
			return err
		}
		limit := seatLimitFor(&business, actor.Role, s.seatHardCeiling)
		if seats >= limit {
			s.log.WithFields(logrus.Fields{
				"event":       "capacity_exceeded",
				"business_id": businessID,
				"seat_count":  seats,
				"max_seats":   business.MaxSeats,
				"actor_id":    actor.UserID,
			}).Warn("席位容量不足，创建用户被拒绝")
			return errors.NewCapacityExceeded(
				fmt.Sprintf("席位已满（%d/%d），请扩容后重试", seats, business.MaxSeats))
		}

		// 邮箱平台全局唯一（大小写不敏感）
		var emailCount int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&emailCount).Error; err != nil {
			return err
		}
		if emailCount > 0 {
			return errors.NewDuplicateEmail(email)
		}

		// 每个企业有用户后必须恰好一个 owner：owner 角色只在企业尚无 owner 时可直接创建
		if params.Role == models.RoleOwner {
			var ownerCount int64
			if err := tx.Model(&models.User{}).
				Where("business_id = ? AND role = ?", businessID, models.RoleOwner).
				Count(&ownerCount).Error; err != nil {
				return err
			}
			if ownerCount > 0 {
				return errors.NewOwnershipConstraint("该企业已有所有者，请使用所有权转移")
			}
		}

		user := &models.User{
			Email:      email,
			FirstName:  params.FirstName,
			LastName:   params.LastName,
			Role:       params.Role,
			Status:     models.UserStatusActive,
			BusinessID: &businessID,
		}
		if err := user.SetPassword(params.Password); err != nil {
			return fmt.Errorf("密码加密失败: %v", err)
		}

		if err := tx.Create(user).Error; err != nil {
			// 唯一索引兜底并发重复邮箱
			if err == gorm.ErrDuplicatedKey {
				return errors.NewDuplicateEmail(email)
			}
			return err
		}

		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateSuperAdmin 创建平台超级管理员（种子数据专用，business_id 为 null）
func (s *UserService) CreateSuperAdmin(email, password, firstName, lastName string) (*models.User, error) {
	email = strings.ToLower(email)
	if !s.validateEmail(email) {
		return nil, errors.NewValidation("邮箱格式不正确")
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}

	var emailCount int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&emailCount).Error; err != nil {
		return nil, err
	}
	if emailCount > 0 {
		return nil, errors.NewDuplicateEmail(email)
	}

	user := &models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      models.RoleSuperAdmin,
		Status:    models.UserStatusActive,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Business").First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewRecordNotFound("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户（登录入口，大小写不敏感）
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Business").Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewRecordNotFound("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *UserService) GetWithFiltersAndPage(businessID *uint, status, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.Model(&models.User{})

	// 添加过滤条件
	if businessID != nil {
		query = query.Where("business_id = ?", *businessID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Update 更新用户。角色变更受层级规则约束：
// 不得授予高于操作者自身的角色；owner 角色只能通过所有权转移取得。
func (s *UserService) Update(id uint, params UpdateUserParams, actor Actor) (*models.User, error) {
	var result *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("用户不存在")
			}
			return err
		}

		// 不得操作层级高于自身的用户
		if user.Role.Level() > actor.Role.Level() {
			return errors.NewInsufficientRole("不能操作层级高于自身的用户")
		}

		if params.FirstName != nil {
			if !s.validateName(*params.FirstName) {
				return errors.NewValidation("姓名长度必须在1-50个字符之间")
			}
			user.FirstName = *params.FirstName
		}
		if params.LastName != nil {
			if !s.validateName(*params.LastName) {
				return errors.NewValidation("姓名长度必须在1-50个字符之间")
			}
			user.LastName = *params.LastName
		}
		if params.Status != nil {
			if !params.Status.IsValid() {
				return errors.NewValidation("状态只能是 active、inactive 或 suspended")
			}
			// 重新激活会重新占用席位，与创建走同一套持锁容量检查
			if reoccupiesSeat(user.Status, *params.Status) && user.BusinessID != nil {
				var business models.Business
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, *user.BusinessID).Error
				if err != nil {
					if err == gorm.ErrRecordNotFound {
						return errors.NewRecordNotFound("企业不存在")
					}
					return err
				}
				seats, err := countActiveSeats(tx, *user.BusinessID)
				if err != nil {
					return err
				}
				limit := seatLimitFor(&business, actor.Role, s.seatHardCeiling)
				if seats >= limit {
					s.log.WithFields(logrus.Fields{
						"event":       "capacity_exceeded",
						"business_id": *user.BusinessID,
						"seat_count":  seats,
						"max_seats":   business.MaxSeats,
						"actor_id":    actor.UserID,
					}).Warn("席位容量不足，重新激活被拒绝")
					return errors.NewCapacityExceeded(
						fmt.Sprintf("席位已满（%d/%d），请扩容后重试", seats, business.MaxSeats))
				}
			}
			user.Status = *params.Status
		}
		if params.Role != nil {
			newRole := *params.Role
			if newRole != user.Role {
				if !actor.Role.CanAssign(newRole) {
					return errors.NewInsufficientRole("不能授予高于自身的角色")
				}
				if newRole == models.RoleOwner {
					return errors.NewValidation("owner 角色请通过所有权转移接口变更")
				}
				if user.Role == models.RoleOwner {
					// 直接降级 owner 会打破唯一所有者不变量
					return errors.NewOwnershipConstraint("请先转移所有权，再变更原所有者角色")
				}
				if newRole == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
					return errors.NewInsufficientRole("仅超级管理员可授予超级管理员角色")
				}
				user.Role = newRole
			}
		}

		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		result = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransferOwnership 所有权转移 - 同一事务内原所有者降级为 admin、新所有者晋升，
// 唯一所有者不变量在任何时点（包括事务内）不被打破。
func (s *UserService) TransferOwnership(businessID, newOwnerID uint, actor Actor) error {
	if actor.Role != models.RoleOwner && actor.Role != models.RoleSuperAdmin {
		return errors.NewInsufficientRole("仅所有者或超级管理员可转移所有权")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// 锁定企业行，串行化同企业的所有权变更
		var business models.Business
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, businessID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("企业不存在")
			}
			return err
		}

		var newOwner models.User
		if err := tx.First(&newOwner, newOwnerID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("目标用户不存在")
			}
			return err
		}
		if !newOwner.BelongsTo(businessID) {
			return errors.NewTenantMismatch()
		}
		if newOwner.Status != models.UserStatusActive {
			return errors.NewValidation("目标用户未激活，不能成为所有者")
		}
		if newOwner.Role == models.RoleOwner {
			return errors.NewValidation("目标用户已是所有者")
		}

		var currentOwner models.User
		err = tx.Where("business_id = ? AND role = ?", businessID, models.RoleOwner).First(&currentOwner).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewOwnershipConstraint("该企业当前没有所有者")
			}
			return err
		}

		// 先降级再晋升，两步同事务
		if err := tx.Model(&currentOwner).Update("role", models.RoleAdmin).Error; err != nil {
			return err
		}
		if err := tx.Model(&newOwner).Update("role", models.RoleOwner).Error; err != nil {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"event":       "ownership_transferred",
			"business_id": businessID,
			"from":        currentOwner.ID,
			"to":          newOwner.ID,
			"actor_id":    actor.UserID,
		}).Info("所有权已转移")
		return nil
	})
}

// Delete 硬删除用户 - 与软停用（status 变更）是两个不可互换的操作。
// 目标是其企业唯一所有者时拒绝，必须先转移所有权。
func (s *UserService) Delete(id uint, actor Actor) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("用户不存在")
			}
			return err
		}

		if user.Role.Level() > actor.Role.Level() {
			return errors.NewInsufficientRole("不能删除层级高于自身的用户")
		}

		if user.Role == models.RoleOwner && user.BusinessID != nil {
			var ownerCount int64
			if err := tx.Model(&models.User{}).
				Where("business_id = ? AND role = ?", *user.BusinessID, models.RoleOwner).
				Count(&ownerCount).Error; err != nil {
				return err
			}
			if ownerCount <= 1 {
				return errors.NewOwnershipConstraint("不能删除企业唯一所有者，请先转移所有权")
			}
		}

		return tx.Delete(&user).Error
	})
}

// ========== 快捷操作方法（软停用，区别于硬删除） ==========

// Activate 激活用户
func (s *UserService) Activate(id uint, actor Actor) (*models.User, error) {
	status := models.UserStatusActive
	return s.Update(id, UpdateUserParams{Status: &status}, actor)
}

// Deactivate 停用用户（释放席位）
func (s *UserService) Deactivate(id uint, actor Actor) (*models.User, error) {
	status := models.UserStatusInactive
	return s.Update(id, UpdateUserParams{Status: &status}, actor)
}

// Suspend 封禁用户
func (s *UserService) Suspend(id uint, actor Actor) (*models.User, error) {
	status := models.UserStatusSuspended
	return s.Update(id, UpdateUserParams{Status: &status}, actor)
}

// SetPassword 重置密码 - 只存加盐哈希，明文不留存不记日志
func (s *UserService) SetPassword(id uint, newPassword string) (*models.User, error) {
	if err := s.validatePassword(newPassword); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewRecordNotFound("用户不存在")
		}
		return nil, err
	}

	if err := user.SetPassword(newPassword); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	err = s.db.Save(&user).Error
	return &user, err
}

// UpdateLastLogin 更新最后登录时间
func (s *UserService) UpdateLastLogin(id uint) error {
	now := time.Now()
	return s.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error
}

// ActiveMembers 企业的活跃成员列表（在线状态快照消费）
func (s *UserService) ActiveMembers(businessID uint) ([]models.User, error) {
	var users []models.User
	err := s.db.Where("business_id = ? AND status = ?", businessID, models.UserStatusActive).
		Order("id").Find(&users).Error
	return users, err
}

// ========== 统计相关方法 ==========

// GetStats 获取企业内用户统计
func (s *UserService) GetStats(businessID uint) (*UserStats, error) {
	stats := &UserStats{}

	base := func() *gorm.DB {
		return s.db.Model(&models.User{}).Where("business_id = ?", businessID)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.UserStatusActive).Count(&stats.Active).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.UserStatusInactive).Count(&stats.Inactive).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.UserStatusSuspended).Count(&stats.Suspended).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// ========== 验证相关方法 ==========

func (s *UserService) validateEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".") && len(email) >= 5 && len(email) <= 100
}

func (s *UserService) validatePassword(password string) error {
	if len(password) < 6 {
		return errors.NewValidation("密码长度不能少于6位")
	}
	if len(password) > 50 {
		return errors.NewValidation("密码长度不能超过50位")
	}
	return nil
}

func (s *UserService) validateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 1 && runeCount <= 50
}

func (s *UserService) validateCreateParams(params CreateUserParams) error {
	if !s.validateEmail(params.Email) {
		return errors.NewValidation("邮箱格式不正确")
	}
	if err := s.validatePassword(params.Password); err != nil {
		return err
	}
	if !s.validateName(params.FirstName) || !s.validateName(params.LastName) {
		return errors.NewValidation("姓名长度必须在1-50个字符之间")
	}
	if !params.Role.IsValid() {
		return errors.NewValidation("角色只能是 member、manager、admin 或 owner")
	}
	return nil
}
