package pagination_test

import (
	"net/http/httptest"
	"testing"

	"mtsp/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func paramsFor(t *testing.T, query string) *pagination.PageParams {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return pagination.ParsePageParams(c)
}

func TestParsePageParams(t *testing.T) {
	p := paramsFor(t, "page=3&page_size=20")
	require.Equal(t, 3, p.Page)
	require.Equal(t, 20, p.PageSize)
	require.Equal(t, 40, p.GetOffset())
	require.Equal(t, 20, p.GetLimit())
}

func TestParsePageParams_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	require.Equal(t, pagination.DefaultPage, p.Page)
	require.Equal(t, pagination.DefaultPageSize, p.PageSize)
}

func TestParsePageParams_Invalid(t *testing.T) {
	p := paramsFor(t, "page=abc&page_size=-5")
	require.Equal(t, pagination.DefaultPage, p.Page)
	require.Equal(t, pagination.DefaultPageSize, p.PageSize)

	// 超出上限截断
	p = paramsFor(t, "page_size=5000")
	require.Equal(t, pagination.MaxPageSize, p.PageSize)
}

func TestNewPageInfo(t *testing.T) {
	info := pagination.NewPageInfo(2, 10, 35)
	require.Equal(t, 4, info.TotalPages)
	require.True(t, info.HasNext)
	require.True(t, info.HasPrev)

	info = pagination.NewPageInfo(1, 10, 5)
	require.Equal(t, 1, info.TotalPages)
	require.False(t, info.HasNext)
	require.False(t, info.HasPrev)
}
