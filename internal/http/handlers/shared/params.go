package shared

import (
	"strconv"

	"github.com/raffle-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParseIDParam 解析路径中的正整数 ID，失败时直接写出 400 响应。
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, "参数错误", nil)
		return 0, false
	}
	return uint(value), true
}

// BuildPagination 构造分页信息
func BuildPagination(page, pageSize int, total int64) response.Pagination {
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	}
}
