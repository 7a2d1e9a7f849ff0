package api

import (
	"github.com/gin-gonic/gin"

	"github.com/legalbridge/legalbridge/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread", handler.UnreadCount)
		group.POST("/:id/read", handler.MarkRead)
		group.POST("/read-all", handler.MarkAllRead)
	}
}
