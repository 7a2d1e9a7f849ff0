package api

import (
	"github.com/gin-gonic/gin"

	"github.com/legalbridge/legalbridge/internal/handlers"
)

func registerConsultationRoutes(api *gin.RouterGroup, consultation *handlers.ConsultationHandler, messages *handlers.MessageHandler) {
	api.POST("/appointments/:id/session", consultation.CreateForAppointment)

	sessions := api.Group("/consultations/:token")
	{
		sessions.GET("", consultation.Get)
		sessions.POST("/join", consultation.Join)
		sessions.POST("/end", consultation.End)
		sessions.POST("/rate", consultation.Rate)
		sessions.GET("/analytics", consultation.Analytics)

		sessions.GET("/messages", messages.List)
		sessions.POST("/messages", messages.Post)
		sessions.POST("/messages/read", messages.MarkRead)
		sessions.POST("/messages/:messageID/read", messages.MarkOneRead)
		sessions.GET("/messages/unread", messages.UnreadCount)
	}
}
