package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-wizard/internal/middleware"
	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
)

func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := middleware.Claims(c); claims != nil {
		actor.UserID = claims.UserID
	}
	return actor
}
