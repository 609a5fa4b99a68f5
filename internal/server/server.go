package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/yoganurrahman/moolai-gym-api/internal/billing"
	"github.com/yoganurrahman/moolai-gym-api/internal/booking"
	"github.com/yoganurrahman/moolai-gym-api/internal/branch"
	"github.com/yoganurrahman/moolai-gym-api/internal/checkin"
	"github.com/yoganurrahman/moolai-gym-api/internal/config"
	"github.com/yoganurrahman/moolai-gym-api/internal/discount"
	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
	"github.com/yoganurrahman/moolai-gym-api/internal/schedule"
	"github.com/yoganurrahman/moolai-gym-api/internal/settings"
	"github.com/yoganurrahman/moolai-gym-api/internal/user"
)

type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	config  *config.Config

	// Billing and entitlement services are exposed for the background
	// schedulers started from main.
	Billing     billing.Service
	Entitlement entitlement.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(cfg))

	settingsRepo := settings.NewRepository(db)

	userService := user.NewService(user.NewRepository(db), cfg.JWTSecret)
	entitlementService := entitlement.NewService(entitlement.NewRepository(db), notifyService)
	scheduleService := schedule.NewService(schedule.NewRepository(db))
	bookingService := booking.NewService(booking.NewRepository(db), entitlement.NewRepository(db), settingsRepo, notifyService)
	checkinService := checkin.NewService(checkin.NewRepository(db), entitlement.NewRepository(db), settingsRepo, notifyService)
	discountService := discount.NewService(discount.NewRepository(db))
	branchService := branch.NewService(branch.NewRepository(db))

	charger := billing.NewHTTPCharger(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	billingService := billing.NewService(billing.NewRepository(db), charger, entitlementService, settingsRepo, notifyService, cfg.PaymentTimeout)

	root := router.Group("")
	user.NewHandler(userService).RegisterRoutes(root, cfg.JWTSecret)
	entitlement.NewHandler(entitlementService).RegisterRoutes(root, cfg.JWTSecret)
	schedule.NewHandler(scheduleService).RegisterRoutes(root, cfg.JWTSecret)
	booking.NewHandler(bookingService).RegisterRoutes(root, cfg.JWTSecret)
	checkin.NewHandler(checkinService).RegisterRoutes(root, cfg.JWTSecret)
	discount.NewHandler(discountService).RegisterRoutes(root, cfg.JWTSecret)
	billing.NewHandler(billingService).RegisterRoutes(root, cfg.JWTSecret)
	branch.NewHandler(branchService).RegisterRoutes(root, cfg.JWTSecret)
	settings.NewHandler(db).RegisterRoutes(root, cfg.JWTSecret)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router:      router,
		config:      cfg,
		Billing:     billingService,
		Entitlement: entitlementService,
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(port string) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
