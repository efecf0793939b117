package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gatepass/internal/cache"
	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/external"
	"gatepass/internal/handlers"
	"gatepass/internal/lifecycle"
	"gatepass/internal/messaging"
	"gatepass/internal/middleware"
	"gatepass/internal/notify"
	"gatepass/internal/repository"
	"gatepass/internal/search"
	"gatepass/internal/service"
)

// Server is the HTTP API process.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	redis    *redis.Client
	limiter  middleware.Limiter
	services *service.Services
	repos    *repository.Repositories
}

// NewServer connects the database and the optional collaborators and builds the router.
// Redis, NATS and Elasticsearch failures degrade the feature they back instead of
// failing startup.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Server{
		config: cfg,
		db:     db,
		repos:  repository.NewRepositories(db),
	}

	deps := service.Deps{
		Tickets:  s.repos.Tickets,
		Prices:   s.repos.Prices,
		Checkout: external.NewPaymentClient(cfg.Payment),
		Options: service.Options{
			Currency:         cfg.Currency,
			FrontendBaseURL:  cfg.FrontendBaseURL,
			AllowedFrontends: cfg.AllowedFrontends,
			MinAmount:        cfg.Ticket.MinAmountMinor,
			Policy: lifecycle.Policy{
				RedemptionWindow: cfg.Ticket.RedemptionWindow,
				CutoffHour:       cfg.Ticket.CutoffHour,
			},
		},
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Options)
		if err != nil {
			slog.Warn("Redis unavailable, price cache and rate limiting disabled", "error", err)
		} else {
			s.redis = rdb
			s.limiter = cache.NewRateLimiter(rdb, cfg.Redis.RateLimitPerMinute)
			deps.Prices = cache.NewPriceCache(rdb, s.repos.Prices, cfg.Redis.PriceCacheTTL)
		}
	}

	if cfg.NATS.Enabled {
		nc, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, ticket events will not be published", "error", err)
		} else {
			s.nats = nc
			deps.Publisher = nc
			deps.Notifier = messaging.NewTicketNotifier(nc)
			deps.Options.NotifyChannel = "nats"
		}
	}

	if deps.Notifier == nil && cfg.MailEnabled() {
		deps.Notifier = notify.NewMailer(notify.NewSMTPSender(cfg.Mail))
		deps.Options.NotifyChannel = "smtp"
	}

	if cfg.Search.Enabled {
		idx, err := search.NewTicketIndex(cfg.Search)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, admin search disabled", "error", err)
		} else {
			deps.Search = idx
		}
	}

	s.services = service.NewServices(deps)
	s.router = gin.New()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, external.NewWebhookVerifier(s.config.Payment.WebhookSecret))

	s.router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CORS(s.config.AllowedOrigin),
		middleware.Logger(),
		middleware.Metrics(),
		middleware.Timeout(s.config.RequestTimeout),
	)

	api := s.router.Group("/api")
	{
		purchases := api.Group("/purchases")
		{
			purchases.POST("", middleware.RateLimit(s.limiter, "purchases"), h.CreatePurchase)
			purchases.GET("", h.GetPurchase)
		}

		api.POST("/payments/webhook", h.PaymentWebhook)
		api.POST("/tickets/validate", middleware.RateLimit(s.limiter, "validate"), h.ValidateTicket)
		api.GET("/price", h.GetPrice)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuth(s.config.Admin.User, s.config.Admin.PasswordHash))
		{
			admin.PUT("/price", h.SetPrice)
			admin.DELETE("/price", h.UnsetPrice)
			admin.GET("/tickets/search", h.SearchTickets)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	hc := s.db.HealthCheck(c.Request.Context())
	s.db.WarnOnPressure()

	status := http.StatusOK
	if !hc.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":   hc.Status,
		"service":  "gatepass-api",
		"database": hc,
	})
}

// GetRouter returns the router, for tests and for http.Server.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes connections.
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
