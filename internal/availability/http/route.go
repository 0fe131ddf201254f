package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, providerOnly gin.HandlerFunc) {
	// === Provider's own availability ===
	own := g.Group("/availability")
	own.Use(authMiddleware, providerOnly)
	{
		own.PUT("/:date", h.ReplaceDay)
		own.GET("/:date", h.GetDay)
	}

	// === Public free slots of a provider ===
	public := g.Group("/providers/:id/availability")
	public.Use(authMiddleware)
	{
		public.GET("", h.ListFreeDays)
		public.GET("/:date", h.GetFreeDay)
	}
}
