package shared

import (
	"errors"

	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 业务错误到接口状态码的映射，消息直接取业务错误文本。
type MappedError struct {
	Target error
	Code   int
}

// RespondMappedError 命中映射时返回业务错误，否则按兜底状态码记录并返回。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Target.Error(), nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}

// RaffleErrorRules 抽奖相关业务错误映射
var RaffleErrorRules = []MappedError{
	{Target: service.ErrRaffleNotFound, Code: response.CodeNotFound},
	{Target: service.ErrPrizeNotFound, Code: response.CodeNotFound},
	{Target: service.ErrTicketNotFound, Code: response.CodeNotFound},
	{Target: service.ErrCapacityInvalid, Code: response.CodeBadRequest},
	{Target: service.ErrRaffleInvalid, Code: response.CodeBadRequest},
	{Target: service.ErrPrizeInvalid, Code: response.CodeBadRequest},
	{Target: service.ErrPrizeThresholdInvalid, Code: response.CodeBadRequest},
	{Target: service.ErrTicketNumberInvalid, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidQuantity, Code: response.CodeBadRequest},
	{Target: service.ErrRaffleNotActive, Code: response.CodeConflict},
	{Target: service.ErrRaffleStatusInvalid, Code: response.CodeConflict},
	{Target: service.ErrTicketPoolExists, Code: response.CodeConflict},
	{Target: service.ErrTicketPoolIncomplete, Code: response.CodeConflict},
	{Target: service.ErrTicketPoolHasSales, Code: response.CodeConflict},
	{Target: service.ErrTicketPoolHasWinners, Code: response.CodeConflict},
	{Target: service.ErrTicketConflict, Code: response.CodeConflict},
	{Target: service.ErrInsufficientInventory, Code: response.CodeConflict},
	{Target: service.ErrNoTicketsAvailable, Code: response.CodeConflict},
	{Target: service.ErrAlreadyWinner, Code: response.CodeConflict},
	{Target: service.ErrTicketNotAvailable, Code: response.CodeConflict},
	{Target: service.ErrPrizeLocked, Code: response.CodeConflict},
	{Target: service.ErrPrizeWinnerBound, Code: response.CodeConflict},
	{Target: service.ErrStorageUnavailable, Code: response.CodeServiceUnavailable},
}

// RespondRaffleError 按抽奖错误映射返回
func RespondRaffleError(c *gin.Context, err error, fallbackMsg string) {
	RespondMappedError(c, err, RaffleErrorRules, response.CodeInternal, fallbackMsg)
}
