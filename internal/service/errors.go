package service

import "errors"

var (
	// ErrCapacityInvalid 奖券总数非法（<=0 或超过上限）
	ErrCapacityInvalid = errors.New("奖券总数不合法")
	// ErrTicketPoolExists 奖券池已存在
	ErrTicketPoolExists = errors.New("奖券池已存在")
	// ErrTicketPoolIncomplete 奖券池数量与活动总数不一致
	ErrTicketPoolIncomplete = errors.New("奖券池未生成完整")
	// ErrTicketPoolHasSales 已有售出奖券，禁止重建或清空
	ErrTicketPoolHasSales = errors.New("奖券池已有售出记录")
	// ErrTicketPoolHasWinners 奖券已被奖品绑定，禁止删除
	ErrTicketPoolHasWinners = errors.New("奖券已绑定奖品")
	// ErrTicketConflict 奖券已被其他请求抢先售出
	ErrTicketConflict = errors.New("奖券已被占用")
	// ErrInsufficientInventory 剩余奖券不足
	ErrInsufficientInventory = errors.New("剩余奖券不足")
	// ErrRaffleNotActive 活动未开售
	ErrRaffleNotActive = errors.New("活动未在售卖中")
	// ErrNoTicketsAvailable 没有可绑定的中奖候选奖券
	ErrNoTicketsAvailable = errors.New("没有可绑定的奖券")
	// ErrAlreadyWinner 奖券已中过其他奖品
	ErrAlreadyWinner = errors.New("奖券已中奖")
	// ErrStorageUnavailable 存储暂不可用（超时或繁忙），可重试
	ErrStorageUnavailable = errors.New("存储暂不可用")

	ErrRaffleNotFound        = errors.New("活动不存在")
	ErrRaffleInvalid         = errors.New("活动参数不合法")
	ErrRaffleStatusInvalid   = errors.New("活动状态不允许该操作")
	ErrPrizeNotFound         = errors.New("奖品不存在")
	ErrPrizeInvalid          = errors.New("奖品参数不合法")
	ErrPrizeThresholdInvalid = errors.New("奖品解锁条件不合法")
	ErrPrizeLocked           = errors.New("奖品已解锁，无法修改")
	ErrPrizeWinnerBound      = errors.New("奖品已绑定中奖奖券")
	ErrTicketNotFound        = errors.New("奖券不存在")
	ErrTicketNotAvailable    = errors.New("奖券已售出，不能指定为中奖券")
	ErrTicketNumberInvalid   = errors.New("奖券号码不合法")
	ErrInvalidQuantity       = errors.New("购买数量不合法")
)
