package models

// Business 企业（租户）模型 - 贫血模型，只包含数据结构
type Business struct {
	BaseModel
	Name         string `json:"name" gorm:"not null;size:100;index"`
	Industry     string `json:"industry" gorm:"not null;size:50"`
	SizeCategory string `json:"size_category" gorm:"size:20"`
	Country      string `json:"country" gorm:"size:50"`
	City         string `json:"city" gorm:"size:50"`
	Address      string `json:"address" gorm:"size:255"`
	MaxSeats     int    `json:"max_seats" gorm:"not null;default:5"` // 购买的席位容量
	SeatCount    int    `json:"seat_count" gorm:"-"`                 // 活跃用户数，读取时实时统计，不落库
}

// TableName 表名
func (b *Business) TableName() string {
	return "businesses"
}

// 企业规模常量
const (
	BusinessSizeMicro  = "micro"  // 1-9人
	BusinessSizeSmall  = "small"  // 10-49人
	BusinessSizeMedium = "medium" // 50-249人
	BusinessSizeLarge  = "large"  // 250人以上
)

// IsValidSizeCategory 检查企业规模是否有效
func IsValidSizeCategory(size string) bool {
	switch size {
	case "", BusinessSizeMicro, BusinessSizeSmall, BusinessSizeMedium, BusinessSizeLarge:
		return true
	default:
		return false
	}
}
