package admin

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return value
}
