package admin

import (
	handlershared "github.com/raffle-next/internal/http/handlers/shared"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/repository"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePrizeRequest 创建奖品请求，threshold_percent 与 threshold_count 二选一
type CreatePrizeRequest struct {
	Name             string           `json:"name" binding:"required"`
	Description      string           `json:"description"`
	ThresholdPercent *decimal.Decimal `json:"threshold_percent"`
	ThresholdCount   *int             `json:"threshold_count"`
	SortOrder        int              `json:"sort_order"`
	AllowUnbound     bool             `json:"allow_unbound"`
}

// UpdatePrizeRequest 奖品补丁
type UpdatePrizeRequest struct {
	Name             *string          `json:"name"`
	Description      *string          `json:"description"`
	ThresholdPercent *decimal.Decimal `json:"threshold_percent"`
	ThresholdCount   *int             `json:"threshold_count"`
	SortOrder        *int             `json:"sort_order"`
}

// AssignWinnerRequest 手动指定中奖券
type AssignWinnerRequest struct {
	TicketNumber *int `json:"ticket_number" binding:"required"`
}

// CreatePrize 创建奖品并绑定中奖券
func (h *Handler) CreatePrize(c *gin.Context) {
	raffleID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req CreatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	result, err := h.PrizeService.CreatePrize(c.Request.Context(), service.CreatePrizeInput{
		RaffleID:         raffleID,
		Name:             req.Name,
		Description:      req.Description,
		ThresholdPercent: req.ThresholdPercent,
		ThresholdCount:   req.ThresholdCount,
		SortOrder:        req.SortOrder,
		AllowUnbound:     req.AllowUnbound,
	})
	if err != nil {
		respondRaffleError(c, err, "创建奖品失败")
		return
	}
	requestLog(c).Infow("admin_prize_created",
		"raffle_id", raffleID,
		"prize_id", result.Prize.ID,
		"winner_bound", result.WinnerBound,
		"operator", adminSubject(c),
	)
	response.Success(c, result)
}

// ListPrizes 奖品列表（含中奖信息）
func (h *Handler) ListPrizes(c *gin.Context) {
	raffleID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	views, err := h.PrizeService.ListPrizes(c.Request.Context(), raffleID, false)
	if err != nil {
		respondRaffleError(c, err, "获取奖品列表失败")
		return
	}
	response.Success(c, views)
}

// UpdatePrize 更新未解锁奖品
func (h *Handler) UpdatePrize(c *gin.Context) {
	prizeID, ok := handlershared.ParseIDParam(c, "prize_id")
	if !ok {
		return
	}
	var req UpdatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	prize, err := h.PrizeService.UpdatePrize(c.Request.Context(), prizeID, repository.PrizePatch{
		Name:             req.Name,
		Description:      req.Description,
		ThresholdPercent: req.ThresholdPercent,
		ThresholdCount:   req.ThresholdCount,
		SortOrder:        req.SortOrder,
	})
	if err != nil {
		respondRaffleError(c, err, "更新奖品失败")
		return
	}
	response.Success(c, prize)
}

// AssignPrizeWinner 为未绑定的奖品指定中奖券
func (h *Handler) AssignPrizeWinner(c *gin.Context) {
	prizeID, ok := handlershared.ParseIDParam(c, "prize_id")
	if !ok {
		return
	}
	var req AssignWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	prize, err := h.PrizeService.AssignWinner(c.Request.Context(), prizeID, *req.TicketNumber)
	if err != nil {
		respondRaffleError(c, err, "指定中奖券失败")
		return
	}
	requestLog(c).Infow("admin_prize_winner_assigned", "prize_id", prize.ID, "ticket_number", *req.TicketNumber, "operator", adminSubject(c))
	response.Success(c, gin.H{"prize_id": prize.ID, "winner_bound": true})
}
