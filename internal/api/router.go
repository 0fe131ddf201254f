package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/auth"
	"github.com/magicparents/carebook/internal/availability"
	availabilityHttp "github.com/magicparents/carebook/internal/availability/http"
	"github.com/magicparents/carebook/internal/booking"
	bookingHttp "github.com/magicparents/carebook/internal/booking/http"
	"github.com/magicparents/carebook/internal/directory"
)

// Config holds the dependencies needed to build the HTTP router.
type Config struct {
	IsProduction    bool
	ProdOrigins     string
	RateLimitPerMin int
	Logger          *zap.Logger

	DB                  Pinger
	JWTManager          *auth.JWTManager
	Directory           directory.Directory
	AvailabilityService availability.Service
	FreeSlots           availabilityHttp.FreeSlots
	BookingService      booking.Service
}

// NewRouter assembles middleware and registers every module's routes.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(logger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000",
			"http://localhost:8081", // Swagger
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	if cfg.RateLimitPerMin > 0 {
		r.Use(RateLimit(cfg.RateLimitPerMin, logger))
	}

	if cfg.DB != nil {
		r.GET("/healthz", Health(cfg.DB))
	}

	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	clientOnly := auth.RequireRole(auth.RoleClient)
	providerOnly := auth.RequireRole(auth.RoleProvider)

	availabilityHandler := availabilityHttp.NewHandler(cfg.AvailabilityService, cfg.FreeSlots)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	v1 := r.Group("/v1")
	{
		v1.GET("/me", authMiddleware, Me(cfg.Directory))
		availabilityHttp.RegisterRoutes(v1, availabilityHandler, authMiddleware, providerOnly)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, clientOnly, providerOnly)
	}

	return r
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
