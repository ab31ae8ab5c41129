package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/raffle-next/internal/constants"
	handlershared "github.com/raffle-next/internal/http/handlers/shared"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PurchaseRequest 购券请求
type PurchaseRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	OwnerRef string `json:"owner_ref" binding:"required"`
}

// RevealedPrize 购券后揭晓的奖品，不含持有人信息
type RevealedPrize struct {
	PrizeID             uint   `json:"prize_id"`
	PrizeName           string `json:"prize_name"`
	WinningTicketNumber int    `json:"winning_ticket_number"`
}

// PurchaseResponse 购券响应
type PurchaseResponse struct {
	AllocationID  string          `json:"allocation_id"`
	RaffleID      uint            `json:"raffle_id"`
	TicketNumbers []int           `json:"ticket_numbers"`
	TotalAmount   models.Money    `json:"total_amount"`
	Currency      string          `json:"currency"`
	Revealed      []RevealedPrize `json:"revealed"`
}

// ListRaffles 公开活动列表，仅返回售卖中与已结束的活动
func (h *Handler) ListRaffles(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))
	if status != constants.RaffleStatusCompleted {
		status = constants.RaffleStatusActive
	}
	items, total, err := h.RaffleService.ListRaffles(c.Request.Context(), repository.RaffleListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   status,
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		handlershared.RespondRaffleError(c, err, "获取活动列表失败")
		return
	}
	response.SuccessWithPage(c, items, handlershared.BuildPagination(page, pageSize, total))
}

// GetRaffle 公开活动详情，草稿与已取消活动不可见
func (h *Handler) GetRaffle(c *gin.Context) {
	raffle, ok := h.loadVisibleRaffle(c)
	if !ok {
		return
	}
	response.Success(c, raffle)
}

// GetRaffleStats 公开售券进度
func (h *Handler) GetRaffleStats(c *gin.Context) {
	raffle, ok := h.loadVisibleRaffle(c)
	if !ok {
		return
	}
	stats, err := h.StatsService.GetRaffleStats(c.Request.Context(), raffle.ID)
	if err != nil {
		handlershared.RespondRaffleError(c, err, "获取统计失败")
		return
	}
	response.Success(c, stats)
}

// ListPrizes 公开奖品列表，未解锁奖品隐藏中奖号码
func (h *Handler) ListPrizes(c *gin.Context) {
	raffle, ok := h.loadVisibleRaffle(c)
	if !ok {
		return
	}
	views, err := h.PrizeService.ListPrizes(c.Request.Context(), raffle.ID, true)
	if err != nil {
		handlershared.RespondRaffleError(c, err, "获取奖品列表失败")
		return
	}
	response.Success(c, views)
}

// PurchaseTickets 按数量购券
func (h *Handler) PurchaseTickets(c *gin.Context) {
	raffleID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	if strings.TrimSpace(req.OwnerRef) == "" {
		handlershared.RespondError(c, response.CodeBadRequest, errEmptyOwnerRef.Error(), nil)
		return
	}
	result, err := h.AllocationService.AllocateTickets(c.Request.Context(), service.AllocateTicketsInput{
		RaffleID: raffleID,
		Quantity: req.Quantity,
		OwnerRef: req.OwnerRef,
	})
	if err != nil {
		handlershared.RespondRaffleError(c, err, "购券失败")
		return
	}
	response.Success(c, toPurchaseResponse(result))
}

func (h *Handler) loadVisibleRaffle(c *gin.Context) (*models.Raffle, bool) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	raffle, err := h.RaffleService.GetRaffle(c.Request.Context(), id)
	if err != nil {
		handlershared.RespondRaffleError(c, err, "获取活动失败")
		return nil, false
	}
	if !isPubliclyVisible(raffle.Status) {
		handlershared.RespondRaffleError(c, service.ErrRaffleNotFound, "获取活动失败")
		return nil, false
	}
	return raffle, true
}

func isPubliclyVisible(status string) bool {
	return status == constants.RaffleStatusActive || status == constants.RaffleStatusCompleted
}

func toPurchaseResponse(result *service.AllocationResult) PurchaseResponse {
	resp := PurchaseResponse{
		AllocationID:  result.AllocationID,
		RaffleID:      result.RaffleID,
		TicketNumbers: result.TicketNumbers,
		TotalAmount:   result.TotalAmount,
		Currency:      result.Currency,
		Revealed:      []RevealedPrize{},
	}
	if result.Revelation == nil {
		return resp
	}
	for _, event := range result.Revelation.Unlocked {
		resp.Revealed = append(resp.Revealed, RevealedPrize{
			PrizeID:             event.PrizeID,
			PrizeName:           event.PrizeName,
			WinningTicketNumber: event.WinningTicketNumber,
		})
	}
	return resp
}

var errEmptyOwnerRef = errors.New("owner_ref 不能为空")
