package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raffle-next/internal/models"

	"gorm.io/gorm"
)

var transientStorageMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"could not serialize access",
	"deadlock detected",
	"connection refused",
	"bad connection",
}

var uniqueViolationMarkers = []string{
	"unique constraint failed",
	"duplicate key value",
	"duplicate entry",
}

// withStorageTimeout 为单次存储调用设置超时
func withStorageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// runInTx 在全局连接池上执行事务；回调内只能使用 tx
func runInTx(ctx context.Context, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if models.DB == nil {
		return fmt.Errorf("%w: database not initialized", ErrStorageUnavailable)
	}
	tctx, cancel := withStorageTimeout(ctx, timeout)
	defer cancel()
	return wrapStorageError(models.DB.WithContext(tctx).Transaction(fn))
}

// wrapStorageError 把超时与数据库繁忙归为可重试的 ErrStorageUnavailable，调用方取消原样返回
func wrapStorageError(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTransientStorageError(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

func isTransientStorageError(err error) bool {
	return errorContainsAny(err, transientStorageMarkers)
}

// isUniqueViolation 判断唯一索引冲突
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return errorContainsAny(err, uniqueViolationMarkers)
}

func errorContainsAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
