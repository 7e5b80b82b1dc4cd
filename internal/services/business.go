package services

import (
	"fmt"
	"unicode/utf8"

	"mtsp/internal/database"
	"mtsp/internal/models"
	"mtsp/pkg/errors"
	"mtsp/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BusinessService 租户注册表 - 企业记录与席位容量的归属方
type BusinessService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// BusinessStats 企业统计信息
type BusinessStats struct {
	Total         int64 `json:"total"`
	TotalSeats    int64 `json:"total_seats"`
	OccupiedSeats int64 `json:"occupied_seats"`
}

func NewBusinessService() *BusinessService {
	return &BusinessService{
		db:  database.GetDB(),
		log: logger.GetLogger(),
	}
}

// countActiveSeats 实时统计企业的活跃用户数。
// 席位数不缓存，读取时重算，写路径在事务内持锁重算。
func countActiveSeats(db *gorm.DB, businessID uint) (int64, error) {
	var count int64
	err := db.Model(&models.User{}).
		Where("business_id = ? AND status = ?", businessID, models.UserStatusActive).
		Count(&count).Error
	return count, err
}

// UpdateBusinessParams 企业可变属性补丁，nil 表示不修改
type UpdateBusinessParams struct {
	Name         *string
	SizeCategory *string
	Country      *string
	City         *string
	Address      *string
	MaxSeats     *int
}

// GetByID 根据ID获取企业（含实时席位数）
func (s *BusinessService) GetByID(id uint) (*models.Business, error) {
	var business models.Business
	err := s.db.First(&business, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewRecordNotFound("企业不存在")
		}
		return nil, err
	}

	seats, err := countActiveSeats(s.db, business.ID)
	if err != nil {
		return nil, err
	}
	business.SeatCount = int(seats)
	return &business, nil
}

// GetWithFiltersAndPage 组合查询（分页版本），席位数按页重算
func (s *BusinessService) GetWithFiltersAndPage(industry, keyword string, page, pageSize int) ([]*models.Business, int64, error) {
	var businesses []*models.Business
	var total int64

	query := s.db.Model(&models.Business{})

	// 添加过滤条件
	if industry != "" {
		query = query.Where("industry = ?", industry)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR city LIKE ?", searchPattern, searchPattern)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&businesses).Error; err != nil {
		return nil, 0, err
	}

	// 实时统计每个企业的席位占用
	for i := range businesses {
		seats, err := countActiveSeats(s.db, businesses[i].ID)
		if err != nil {
			return nil, 0, err
		}
		businesses[i].SeatCount = int(seats)
	}

	return businesses, total, nil
}

// Update 更新企业可变属性。
// 下调 max_seats 至低于当前活跃席位数会被拒绝，检查与写入在同一事务内持锁完成。
func (s *BusinessService) Update(id uint, params UpdateBusinessParams) (*models.Business, error) {
	var result *models.Business
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var business models.Business
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, id).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("企业不存在")
			}
			return err
		}

		if params.Name != nil {
			if !s.validateName(*params.Name) {
				return errors.NewValidation("企业名称长度必须在2-100个字符之间")
			}
			business.Name = *params.Name
		}
		if params.SizeCategory != nil {
			if !models.IsValidSizeCategory(*params.SizeCategory) {
				return errors.NewValidation("企业规模只能是 micro、small、medium 或 large")
			}
			business.SizeCategory = *params.SizeCategory
		}
		if params.Country != nil {
			business.Country = *params.Country
		}
		if params.City != nil {
			business.City = *params.City
		}
		if params.Address != nil {
			business.Address = *params.Address
		}
		if params.MaxSeats != nil {
			seats, err := countActiveSeats(tx, business.ID)
			if err != nil {
				return err
			}
			if int64(*params.MaxSeats) < seats {
				s.log.WithFields(logrus.Fields{
					"event":       "capacity_exceeded",
					"business_id": business.ID,
					"max_seats":   *params.MaxSeats,
					"seat_count":  seats,
				}).Warn("下调席位容量被拒绝")
				return errors.NewCapacityExceeded(
					fmt.Sprintf("席位容量不能低于当前占用数 %d", seats))
			}
			business.MaxSeats = *params.MaxSeats
		}

		if err := tx.Save(&business).Error; err != nil {
			return err
		}

		seats, err := countActiveSeats(tx, business.ID)
		if err != nil {
			return err
		}
		business.SeatCount = int(seats)
		result = &business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 删除企业 - 在单个事务内级联删除其用户与订阅，不可逆
func (s *BusinessService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var business models.Business
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, id).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewRecordNotFound("企业不存在")
			}
			return err
		}

		if err := tx.Where("business_id = ?", id).Delete(&models.User{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", id).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("business_id = ?", id).Delete(&models.BillingEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&business).Error; err != nil {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"event":       "business_deleted",
			"business_id": id,
		}).Info("企业及其用户、订阅已级联删除")
		return nil
	})
}

// GetStats 获取平台企业统计
func (s *BusinessService) GetStats() (*BusinessStats, error) {
	stats := &BusinessStats{}

	if err := s.db.Model(&models.Business{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Business{}).
		Select("COALESCE(SUM(max_seats), 0)").Scan(&stats.TotalSeats).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.User{}).
		Where("business_id IS NOT NULL AND status = ?", models.UserStatusActive).
		Count(&stats.OccupiedSeats).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// ========== 验证相关方法 ==========

func (s *BusinessService) validateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 100
}

func (s *BusinessService) validateRequired(name, industry string) error {
	if !s.validateName(name) {
		return errors.NewValidation("企业名称长度必须在2-100个字符之间")
	}
	if industry == "" {
		return errors.NewValidation("所属行业不能为空")
	}
	return nil
}
