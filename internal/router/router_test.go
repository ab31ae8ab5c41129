package router

import (
	"testing"

	"github.com/gin-gonic/gin"
)

func TestDeriveAdminRouteModule(t *testing.T) {
	cases := map[string]string{
		"/api/v1/admin/raffles":            "raffles",
		"/api/v1/admin/raffles/:id":        "raffles",
		"/api/v1/admin/raffles/:id/pool":   "pool",
		"/api/v1/admin/raffles/:id/prizes": "prizes",
		"/api/v1/admin/prizes/:prize_id":   "prizes",
		"/api/v1/admin/raffles/rescan":     "raffles",
		"/api/v1/admin/":                   "system",
	}
	for path, want := range cases {
		if got := deriveAdminRouteModule(path); got != want {
			t.Fatalf("%s: want %s got %s", path, want, got)
		}
	}
}

func TestBuildAdminRouteCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	noop := func(*gin.Context) {}
	r.GET("/api/v1/public/raffles", noop)
	r.GET("/api/v1/admin/raffles", noop)
	r.POST("/api/v1/admin/raffles", noop)
	r.DELETE("/api/v1/admin/raffles/:id/pool", noop)

	items := buildAdminRouteCatalog(r)
	if len(items) != 3 {
		t.Fatalf("catalog want 3 items got %d: %+v", len(items), items)
	}
	if items[0].Module != "pool" || items[0].Method != "DELETE" {
		t.Fatalf("catalog should be sorted by module, got %+v", items[0])
	}
	if items[1].Method != "GET" || items[2].Method != "POST" {
		t.Fatalf("same path should be sorted by method, got %+v", items[1:])
	}
}
