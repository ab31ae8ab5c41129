package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/provider"
	"github.com/raffle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupAdminHandlerTest(t *testing.T) (*Handler, *provider.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	t.Cleanup(func() {
		models.DB = nil
		_ = sqlDB.Close()
	})
	container := provider.NewContainer(&config.Config{})
	return New(container), container
}

func createAdminTestRaffle(t *testing.T, c *provider.Container, capacity int) *models.Raffle {
	t.Helper()
	raffle, err := c.RaffleService.CreateRaffle(context.Background(), service.CreateRaffleInput{
		Title:       "admin raffle",
		Capacity:    capacity,
		TicketPrice: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create raffle failed: %v", err)
	}
	return raffle
}

func newAdminContext(method, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, "/api/v1/admin/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	c.Set("admin_subject", "tester")
	return c, w
}

func decodeAdminResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected http status 200, got %d", w.Code)
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func TestCreateManualSaleWithExplicitNumbers(t *testing.T) {
	h, c := setupAdminHandlerTest(t)
	raffle := createAdminTestRaffle(t, c, 6)
	if _, err := c.RaffleService.ChangeStatus(context.Background(), raffle.ID, constants.RaffleStatusActive); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	params := gin.Params{{Key: "id", Value: fmt.Sprintf("%d", raffle.ID)}}

	ctx, w := newAdminContext(http.MethodPost, `{"numbers":[1,4],"owner_ref":"counter-1"}`, params)
	h.CreateManualSale(ctx)
	resp := decodeAdminResponse(t, w)
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("expected success, got %d %q", resp.StatusCode, resp.Msg)
	}
	data := resp.Data.(map[string]interface{})
	numbers := data["ticket_numbers"].([]interface{})
	if len(numbers) != 2 || numbers[0].(float64) != 1 || numbers[1].(float64) != 4 {
		t.Fatalf("unexpected ticket numbers: %v", numbers)
	}

	ctx, w = newAdminContext(http.MethodPost, `{"numbers":[4,5],"owner_ref":"counter-2"}`, params)
	h.CreateManualSale(ctx)
	resp = decodeAdminResponse(t, w)
	if resp.StatusCode != response.CodeConflict || resp.Msg != service.ErrTicketConflict.Error() {
		t.Fatalf("expected 409 %q, got %d %q", service.ErrTicketConflict.Error(), resp.StatusCode, resp.Msg)
	}

	ctx, w = newAdminContext(http.MethodPost, `{"numbers":[9],"owner_ref":"counter-3"}`, params)
	h.CreateManualSale(ctx)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("out of range number should be 400, got %d", resp.StatusCode)
	}

	ctx, w = newAdminContext(http.MethodPost, `{"numbers":[2]}`, params)
	h.CreateManualSale(ctx)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("missing owner_ref should be 400, got %d", resp.StatusCode)
	}

	sold, err := c.TicketPool.CountByState(context.Background(), raffle.ID, constants.TicketStatusSold)
	if err != nil || sold != 2 {
		t.Fatalf("only the first sale should stand, sold=%d err=%v", sold, err)
	}
}

func TestAssignPrizeWinnerRejectsSoldTicket(t *testing.T) {
	h, c := setupAdminHandlerTest(t)
	ctx := context.Background()
	raffle := createAdminTestRaffle(t, c, 2)
	count := 1
	for i := 0; i < 2; i++ {
		if _, err := c.PrizeService.CreatePrize(ctx, service.CreatePrizeInput{RaffleID: raffle.ID, Name: "bound", ThresholdCount: &count}); err != nil {
			t.Fatalf("create bound prize failed: %v", err)
		}
	}
	unbound, err := c.PrizeService.CreatePrize(ctx, service.CreatePrizeInput{RaffleID: raffle.ID, Name: "manual", ThresholdCount: &count, AllowUnbound: true})
	if err != nil || unbound.WinnerBound {
		t.Fatalf("create unbound prize failed: %v", err)
	}
	if _, err := c.RaffleService.RegenerateTicketPool(ctx, raffle.ID, 4); err != nil {
		t.Fatalf("grow pool failed: %v", err)
	}
	if err := c.TicketPool.MarkSold(ctx, nil, raffle.ID, []int{2}, "known-buyer", "manual"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}
	params := gin.Params{{Key: "prize_id", Value: fmt.Sprintf("%d", unbound.Prize.ID)}}

	gctx, w := newAdminContext(http.MethodPost, `{"ticket_number":2}`, params)
	h.AssignPrizeWinner(gctx)
	resp := decodeAdminResponse(t, w)
	if resp.StatusCode != response.CodeConflict || resp.Msg != service.ErrTicketNotAvailable.Error() {
		t.Fatalf("sold ticket: expected 409 %q, got %d %q", service.ErrTicketNotAvailable.Error(), resp.StatusCode, resp.Msg)
	}

	gctx, w = newAdminContext(http.MethodPost, `{}`, params)
	h.AssignPrizeWinner(gctx)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("missing ticket_number should be 400, got %d", resp.StatusCode)
	}

	gctx, w = newAdminContext(http.MethodPost, `{"ticket_number":3}`, params)
	h.AssignPrizeWinner(gctx)
	resp = decodeAdminResponse(t, w)
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("assign available ticket failed: %d %q", resp.StatusCode, resp.Msg)
	}
	if data := resp.Data.(map[string]interface{}); data["winner_bound"] != true {
		t.Fatalf("unexpected assign response: %v", data)
	}

	gctx, w = newAdminContext(http.MethodPost, `{"ticket_number":3}`, gin.Params{{Key: "prize_id", Value: "9999"}})
	h.AssignPrizeWinner(gctx)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != response.CodeNotFound {
		t.Fatalf("unknown prize should be 404, got %d", resp.StatusCode)
	}
}

func TestListPrizesAdminShowsOwner(t *testing.T) {
	h, c := setupAdminHandlerTest(t)
	ctx := context.Background()
	raffle := createAdminTestRaffle(t, c, 3)
	if _, err := c.RaffleService.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	count := 1
	if _, err := c.PrizeService.CreatePrize(ctx, service.CreatePrizeInput{RaffleID: raffle.ID, Name: "all in", ThresholdCount: &count}); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}
	if _, err := c.AllocationService.AllocateTickets(ctx, service.AllocateTicketsInput{RaffleID: raffle.ID, Quantity: 3, OwnerRef: "whale"}); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	gctx, w := newAdminContext(http.MethodGet, "", gin.Params{{Key: "id", Value: fmt.Sprintf("%d", raffle.ID)}})
	h.ListPrizes(gctx)
	resp := decodeAdminResponse(t, w)
	if resp.StatusCode != response.CodeOK || !strings.Contains(w.Body.String(), `"winner_owner_ref":"whale"`) {
		t.Fatalf("admin prize list should include the winner owner: %s", w.Body.String())
	}
}
