package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// 分页默认值与上限
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100 // 单页条数上限，防止全表拉取
)

// PageParams 请求侧分页参数
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// PageInfo 响应侧分页元信息
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// ParsePageParams 解析查询串中的 page 与 page_size。
// 非法或缺失的值回落到默认值，page_size 超过上限时截断。
func ParsePageParams(c *gin.Context) *PageParams {
	return &PageParams{
		Page:     intQuery(c, "page", DefaultPage, 0),
		PageSize: intQuery(c, "page_size", DefaultPageSize, MaxPageSize),
	}
}

func intQuery(c *gin.Context, key string, fallback, ceiling int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 1 {
		return fallback
	}
	if ceiling > 0 && value > ceiling {
		return ceiling
	}
	return value
}

// NewPageInfo 根据总记录数计算分页元信息
func NewPageInfo(page, pageSize int, total int64) *PageInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// GetOffset 当前页在结果集中的偏移量
func (p *PageParams) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 当前页的查询条数
func (p *PageParams) GetLimit() int {
	return p.PageSize
}
