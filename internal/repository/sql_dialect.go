package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// randomOrderExpr 生成随机排序表达式，兼容 sqlite、postgres 与 mysql。
func randomOrderExpr(db *gorm.DB) string {
	return randomOrderExprByDialect(dbDialectName(db))
}

func randomOrderExprByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "mysql":
		return "RAND()"
	default:
		return "RANDOM()"
	}
}

// likeOperator 返回大小写不敏感的 LIKE 运算符
func likeOperator(db *gorm.DB) string {
	return likeOperatorByDialect(dbDialectName(db))
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}
