package repository

import "gorm.io/gorm"

const maxPageSize = 500

// applyPagination 应用分页参数；pageSize<=0 表示不分页，超过上限时截断。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// countAndFind 先统计总数再按分页取数据
func countAndFind[T any](query *gorm.DB, page, pageSize int, order string) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []T
	if err := applyPagination(query, page, pageSize).Order(order).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
