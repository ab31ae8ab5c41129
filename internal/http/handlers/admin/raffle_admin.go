package admin

import (
	"strings"

	handlershared "github.com/raffle-next/internal/http/handlers/shared"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/repository"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateRaffleRequest 创建活动请求
type CreateRaffleRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Capacity    int             `json:"capacity" binding:"required"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	Currency    string          `json:"currency"`
}

// UpdateRaffleRequest 活动补丁，未传字段保持不变
type UpdateRaffleRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	TicketPrice *decimal.Decimal `json:"ticket_price"`
	Currency    *string          `json:"currency"`
}

// ChangeRaffleStatusRequest 状态流转请求
type ChangeRaffleStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateTicketPoolRequest 生成奖券池请求
type CreateTicketPoolRequest struct {
	Resume bool `json:"resume"`
}

// RegenerateTicketPoolRequest 调整奖券池容量请求
type RegenerateTicketPoolRequest struct {
	Capacity int `json:"capacity" binding:"required"`
}

// CreateRaffle 创建活动
func (h *Handler) CreateRaffle(c *gin.Context) {
	var req CreateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	raffle, err := h.RaffleService.CreateRaffle(c.Request.Context(), service.CreateRaffleInput{
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
		TicketPrice: req.TicketPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		respondRaffleError(c, err, "创建活动失败")
		return
	}
	requestLog(c).Infow("admin_raffle_created", "raffle_id", raffle.ID, "capacity", raffle.Capacity, "operator", adminSubject(c))
	response.Success(c, raffle)
}

// ListRaffles 活动列表
func (h *Handler) ListRaffles(c *gin.Context) {
	page, pageSize := handlershared.NormalizePagination(queryInt(c, "page"), queryInt(c, "page_size"))
	items, total, err := h.RaffleService.ListRaffles(c.Request.Context(), repository.RaffleListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondRaffleError(c, err, "获取活动列表失败")
		return
	}
	response.SuccessWithPage(c, items, handlershared.BuildPagination(page, pageSize, total))
}

// GetRaffle 活动详情
func (h *Handler) GetRaffle(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	raffle, err := h.RaffleService.GetRaffle(c.Request.Context(), id)
	if err != nil {
		respondRaffleError(c, err, "获取活动失败")
		return
	}
	response.Success(c, raffle)
}

// UpdateRaffle 更新活动基础信息
func (h *Handler) UpdateRaffle(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	raffle, err := h.RaffleService.UpdateRaffle(c.Request.Context(), id, repository.RafflePatch{
		Title:       req.Title,
		Description: req.Description,
		TicketPrice: req.TicketPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		respondRaffleError(c, err, "更新活动失败")
		return
	}
	response.Success(c, raffle)
}

// ChangeRaffleStatus 活动状态流转
func (h *Handler) ChangeRaffleStatus(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req ChangeRaffleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	raffle, err := h.RaffleService.ChangeStatus(c.Request.Context(), id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		respondRaffleError(c, err, "更新活动状态失败")
		return
	}
	requestLog(c).Infow("admin_raffle_status_changed", "raffle_id", raffle.ID, "status", raffle.Status, "operator", adminSubject(c))
	response.Success(c, raffle)
}

// CreateTicketPool 生成奖券池，resume 时补齐缺失号码
func (h *Handler) CreateTicketPool(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req CreateTicketPoolRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "参数错误", err)
			return
		}
	}
	if err := h.RaffleService.CreateTicketPool(c.Request.Context(), id, req.Resume); err != nil {
		respondRaffleError(c, err, "生成奖券池失败")
		return
	}
	h.respondPoolSnapshot(c, id)
}

// RegenerateTicketPool 调整未售活动的奖券池容量
func (h *Handler) RegenerateTicketPool(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req RegenerateTicketPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	raffle, err := h.RaffleService.RegenerateTicketPool(c.Request.Context(), id, req.Capacity)
	if err != nil {
		respondRaffleError(c, err, "重建奖券池失败")
		return
	}
	requestLog(c).Infow("admin_ticket_pool_regenerated", "raffle_id", raffle.ID, "capacity", raffle.Capacity, "operator", adminSubject(c))
	response.Success(c, raffle)
}

// PurgeTicketPool 清空草稿或已取消活动的奖券池
func (h *Handler) PurgeTicketPool(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	deleted, err := h.RaffleService.PurgeTicketPool(c.Request.Context(), id)
	if err != nil {
		respondRaffleError(c, err, "清空奖券池失败")
		return
	}
	requestLog(c).Infow("admin_ticket_pool_purged", "raffle_id", id, "deleted", deleted, "operator", adminSubject(c))
	response.Success(c, gin.H{"deleted": deleted})
}

// GetTicketPool 奖券池快照
func (h *Handler) GetTicketPool(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	h.respondPoolSnapshot(c, id)
}

func (h *Handler) respondPoolSnapshot(c *gin.Context, raffleID uint) {
	snapshot, err := h.TicketPool.Snapshot(c.Request.Context(), raffleID)
	if err != nil {
		respondRaffleError(c, err, "获取奖券池失败")
		return
	}
	response.Success(c, snapshot)
}

// ListTickets 奖券列表
func (h *Handler) ListTickets(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	page, pageSize := handlershared.NormalizePagination(queryInt(c, "page"), queryInt(c, "page_size"))
	items, total, err := h.TicketPool.ListTickets(c.Request.Context(), repository.TicketListFilter{
		Page:        page,
		PageSize:    pageSize,
		RaffleID:    id,
		Status:      strings.TrimSpace(c.Query("status")),
		OwnerRef:    strings.TrimSpace(c.Query("owner_ref")),
		OnlyWinners: c.Query("winners") == "true",
	})
	if err != nil {
		respondRaffleError(c, err, "获取奖券列表失败")
		return
	}
	response.SuccessWithPage(c, items, handlershared.BuildPagination(page, pageSize, total))
}

// GetRaffleStats 售券统计
func (h *Handler) GetRaffleStats(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.StatsService.GetRaffleStats(c.Request.Context(), id)
	if err != nil {
		respondRaffleError(c, err, "获取统计失败")
		return
	}
	response.Success(c, stats)
}

// RevealRaffle 手动触发一次开奖扫描
func (h *Handler) RevealRaffle(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.RaffleService.GetRaffle(c.Request.Context(), id); err != nil {
		respondRaffleError(c, err, "开奖扫描失败")
		return
	}
	result, err := h.RevelationScheduler.Reveal(c.Request.Context(), id)
	if err != nil {
		respondRaffleError(c, err, "开奖扫描失败")
		return
	}
	response.Success(c, result)
}

// RescanRaffles 对所有售卖中的活动补扫
func (h *Handler) RescanRaffles(c *gin.Context) {
	unlocked, err := h.RevelationScheduler.RescanActive(c.Request.Context())
	if err != nil {
		respondRaffleError(c, err, "补扫失败")
		return
	}
	response.Success(c, gin.H{"unlocked": unlocked})
}
