package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	metrics  *metrics.Metrics
	http     *http.Server
	logger   *logging.Logger
}

// New builds the gin engine and registers every route.
func New(h *handlers.Handlers, cfg *config.Config, m *metrics.Metrics) *Server {
	logger := logging.NewLogger("server")

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger, m),
		gin.Recovery(),
		cors.New(corsConfig(cfg.CORS)),
	)

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		metrics:  m,
		logger:   logger,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	c.ExposeHeaders = []string{middleware.RequestIDHeader}
	c.MaxAge = 12 * time.Hour
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	auth := middleware.Auth(s.config.Auth.JWTSecret)

	v1 := s.router.Group("/api/v1", auth)
	{
		v1.GET("/cart", s.handlers.GetCart)
		v1.DELETE("/cart", s.handlers.ClearCart)
		v1.POST("/cart/items", s.handlers.AddCartItem)
		v1.PUT("/cart/items/:bookId", s.handlers.SetCartItemQuantity)
		v1.DELETE("/cart/items/:bookId", s.handlers.RemoveCartItem)

		v1.GET("/addresses", s.handlers.ListAddresses)
		v1.POST("/addresses", s.handlers.CreateAddress)
		v1.PATCH("/addresses/:id", s.handlers.UpdateAddress)
		v1.POST("/addresses/:id/default", s.handlers.SetDefaultAddress)

		v1.GET("/orders", s.handlers.ListOrders)
		v1.GET("/orders/:id", s.handlers.GetOrder)
		v1.GET("/orders/:id/payment", s.handlers.GetOrderPayment)
	}

	checkout := s.router.Group("/checkout", auth)
	{
		checkout.POST("/shipping", s.handlers.SetShipping)
		checkout.POST("/payment", s.handlers.SetPayment)
		checkout.POST("/confirm", s.handlers.Confirm)
		checkout.GET("/session", s.handlers.GetSession)
	}
}

// Router exposes the engine for in-process tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
