package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, clientOnly, providerOnly gin.HandlerFunc) {
	g.POST("/providers/:id/bookings", authMiddleware, clientOnly, h.Create)

	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/confirm", providerOnly, h.Confirm)
		group.POST("/:id/reject", providerOnly, h.Reject)
		group.POST("/:id/review", clientOnly, h.Review)
	}
}
