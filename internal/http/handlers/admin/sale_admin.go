package admin

import (
	handlershared "github.com/raffle-next/internal/http/handlers/shared"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ManualSaleRequest 后台代售请求，numbers 与 quantity 二选一
type ManualSaleRequest struct {
	Quantity int    `json:"quantity"`
	Numbers  []int  `json:"numbers"`
	OwnerRef string `json:"owner_ref" binding:"required"`
}

// CreateManualSale 后台代客售券，可指定号码
func (h *Handler) CreateManualSale(c *gin.Context) {
	raffleID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req ManualSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "参数错误", err)
		return
	}
	result, err := h.AllocationService.AllocateTickets(c.Request.Context(), service.AllocateTicketsInput{
		RaffleID: raffleID,
		Quantity: req.Quantity,
		Numbers:  req.Numbers,
		OwnerRef: req.OwnerRef,
	})
	if err != nil {
		respondRaffleError(c, err, "售券失败")
		return
	}
	requestLog(c).Infow("admin_manual_sale",
		"raffle_id", raffleID,
		"allocation_id", result.AllocationID,
		"tickets", len(result.TicketNumbers),
		"operator", adminSubject(c),
	)
	response.Success(c, result)
}
