package directory

import (
	"net/http"

	"github.com/magicparents/carebook/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "user not found")
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// Party is the slice of an identity record the booking core reads.
type Party struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	Role        Role    `json:"role"`
	HourPrice   float64 `json:"hour_price"`
	Location    string  `json:"location"`
}

// Name returns the display name, falling back to the email address.
func (p *Party) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}
