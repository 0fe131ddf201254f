package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/api"
	"github.com/magicparents/carebook/internal/auth"
	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/booking"
	"github.com/magicparents/carebook/internal/config"
	"github.com/magicparents/carebook/internal/directory"
	"github.com/magicparents/carebook/internal/notify"
	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/reconcile"
	"github.com/magicparents/carebook/internal/scheduler"
)

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager

	Bookings     booking.Service
	Availability availability.Repository

	cfg      *config.Config
	logger   *zap.Logger
	clock    clock.Clock
	rdb      *redis.Client
	notifier notify.Gateway
}

// NewContainer initializes all modules and returns the container.
// A nil clk means the wall clock.
func NewContainer(cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger, clk clock.Clock) *Container {
	if clk == nil {
		clk = clock.Real{}
	}
	c := &Container{cfg: cfg, logger: logger, clock: clk, notifier: notify.Noop{}}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	// Directory
	dir := directory.NewPgxDirectory(pool)
	if cfg.RedisAddr != "" {
		c.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisCacheDB,
		})
		dir = directory.NewCachedDirectory(dir, c.rdb, cfg.DirectoryCacheTTL, logger)
		c.notifier = notify.NewQueueGateway(QueueRedisOpt(cfg))
	} else {
		logger.Warn("REDIS_ADDR not set: directory cache and notifications disabled")
	}

	// Availability Module
	availRepo := availability.NewPgxRepository(pool)
	availService := availability.NewService(availRepo, clk, cfg.Location, logger)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(pool)
	reconciler := reconcile.New(availRepo, bookingRepo, clk, cfg.Location)
	bookingService := booking.NewService(booking.Deps{
		Repo:      bookingRepo,
		Slots:     reconciler,
		Directory: dir,
		Notifier:  c.notifier,
		Clock:     clk,
		Location:  cfg.Location,
		Logger:    logger,
	})

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		RateLimitPerMin:     cfg.RateLimitPerMin,
		Logger:              logger,
		DB:                  pool,
		JWTManager:          jwtManager,
		Directory:           dir,
		AvailabilityService: availService,
		FreeSlots:           reconciler,
		BookingService:      bookingService,
	})

	c.JWTManager = jwtManager
	c.Bookings = bookingService
	c.Availability = availRepo
	return c
}

// Jobs returns the background jobs keyed by name.
func (c *Container) Jobs() map[string]scheduler.Job {
	return map[string]scheduler.Job{
		"promote":     scheduler.NewPromoteJob(c.Bookings, c.logger),
		"complete":    scheduler.NewCompleteJob(c.Bookings, c.logger),
		"rollforward": scheduler.NewRollForwardJob(c.Availability, c.clock, c.cfg.Location, c.logger),
	}
}

// NewScheduler returns a scheduler with every job registered at its configured interval.
func (c *Container) NewScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(c.logger)
	jobs := c.Jobs()
	if err := s.Every(c.cfg.PromoteEvery, jobs["promote"]); err != nil {
		return nil, err
	}
	if err := s.Every(c.cfg.CompleteEvery, jobs["complete"]); err != nil {
		return nil, err
	}
	if err := s.Every(c.cfg.RollForwardEvery, jobs["rollforward"]); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping checks the optional Redis connection.
func (c *Container) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connections.
func (c *Container) Close() error {
	var errs []error
	if q, ok := c.notifier.(*notify.QueueGateway); ok {
		errs = append(errs, q.Close())
	}
	if c.rdb != nil {
		errs = append(errs, c.rdb.Close())
	}
	return errors.Join(errs...)
}

// QueueRedisOpt returns the asynq connection for the notification queue.
func QueueRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
}
