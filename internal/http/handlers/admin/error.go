package admin

import (
	handlershared "github.com/raffle-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondRaffleError(c *gin.Context, err error, fallbackMsg string) {
	handlershared.RespondRaffleError(c, err, fallbackMsg)
}

func adminSubject(c *gin.Context) string {
	return c.GetString("admin_subject")
}
