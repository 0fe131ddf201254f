package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magicparents/carebook/internal/auth"
	"github.com/magicparents/carebook/internal/directory"
	"github.com/magicparents/carebook/internal/pkg/response"
)

type MeResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Role        directory.Role `json:"role"`
	HourPrice   *float64       `json:"hour_price,omitempty"`
	Location    string         `json:"location,omitempty"`
}

func NewMeResponse(p *directory.Party) MeResponse {
	resp := MeResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.Name(),
		Role:        p.Role,
		Location:    p.Location,
	}
	if p.Role == directory.RoleProvider {
		price := p.HourPrice
		resp.HourPrice = &price
	}
	return resp
}

// Me returns the directory record of the authenticated caller.
func Me(dir directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		p, err := dir.GetByID(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, NewMeResponse(p))
	}
}
