package constants

// 抽奖活动状态常量
const (
	RaffleStatusDraft     = "draft"
	RaffleStatusActive    = "active"
	RaffleStatusCompleted = "completed"
	RaffleStatusCancelled = "cancelled"
)

// 奖券状态常量
const (
	TicketStatusAvailable = "available"
	TicketStatusSold      = "sold"
)

// 奖品状态常量
const (
	PrizeStatusLocked   = "locked"
	PrizeStatusUnlocked = "unlocked"
)

// 奖品解锁条件类型
const (
	PrizeThresholdPercentage = "percentage"
	PrizeThresholdCount      = "count"
)

// 随机售票选号方式
const (
	SelectionModeRandom     = "random"
	SelectionModeSequential = "sequential"
)

// 队列常量
const (
	QueueDefault      = "default"
	QueueCritical     = "critical"
	TaskPrizeRevealed = "prize:revealed"
	TaskRaffleRescan  = "raffle:rescan"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "rf"
)

// 币种常量
const (
	CurrencyDefault = "USD"
)

// 抽奖默认参数
const (
	DefaultAllocationMaxRetries    = 3
	DefaultMaxTicketsPerPurchase   = 100
	DefaultMaxCapacity             = 1000000
	DefaultPoolBatchSize           = 500
	DefaultStorageTimeoutMS        = 5000
	DefaultStatsCacheTTLSeconds    = 10
	DefaultRescanRetryDelaySeconds = 5
)
