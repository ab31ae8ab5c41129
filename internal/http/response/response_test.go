package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("http status should always be 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return body
}

func TestErrorCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	Error(c, CodeConflict, "奖券已被占用")

	body := decodeEnvelope(t, w)
	if int(body["status_code"].(float64)) != CodeConflict {
		t.Fatalf("unexpected status_code: %v", body["status_code"])
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok || data["request_id"] != "req-1" {
		t.Fatalf("request id should be attached: %v", body["data"])
	}
}

func TestErrorWithoutRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, CodeBadRequest, "参数错误")

	body := decodeEnvelope(t, w)
	if body["data"] != nil {
		t.Fatalf("data should be null without request id: %v", body["data"])
	}
}

func TestSuccessWithPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessWithPage(c, []int{1, 2}, Pagination{Page: 1, PageSize: 2, Total: 3, TotalPage: 2})

	body := decodeEnvelope(t, w)
	if int(body["status_code"].(float64)) != CodeOK || body["msg"] != "success" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	pagination := body["pagination"].(map[string]interface{})
	if int(pagination["total_page"].(float64)) != 2 {
		t.Fatalf("unexpected pagination: %v", pagination)
	}
}
