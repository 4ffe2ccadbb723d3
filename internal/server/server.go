// Package server wires the HTTP routes, middleware and lifecycle of the
// store API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"golang.org/x/time/rate"
)

type Server struct {
	config  *config.Config
	router  *gin.Engine
	http    *http.Server
	limiter *middleware.RateLimiter
	logger  *logging.Logger
}

func New(h *handlers.Handlers, cfg *config.Config) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		router:  gin.New(),
		limiter: middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, cfg.RateLimit.TTL),
		logger:  logging.New("server"),
	}

	s.router.Use(
		gin.Recovery(),
		logging.RequestLogger(),
		metrics.Middleware(),
		middleware.SecurityHeaders(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logging.HeaderRequestID},
			ExposeHeaders:    []string{logging.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	s.setupRoutes(h, middleware.NewAuthenticator(cfg.Auth.JWTSecret))

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes(h *handlers.Handlers, auth *middleware.Authenticator) {
	s.router.GET("/health", h.Health)
	s.router.GET("/ready", h.Ready)
	s.router.GET("/live", h.Live)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireUser := auth.RequireAuth()
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	v1 := s.router.Group("/api/v1", s.limiter.Middleware())
	{
		products := v1.Group("/products")
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)
		products.POST("", requireUser, requireAdmin, h.CreateProduct)
		products.PUT("/:id", requireUser, requireAdmin, h.UpdateProduct)
		products.DELETE("/:id", requireUser, requireAdmin, h.DeleteProduct)

		products.GET("/:id/reviews", h.ListReviews)
		products.POST("/:id/reviews", requireUser, h.AddReview)
		products.PUT("/:id/reviews", requireUser, h.UpdateReview)
		products.DELETE("/:id/reviews", requireUser, h.DeleteReview)

		categories := v1.Group("/categories")
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategory)
		categories.POST("", requireUser, requireAdmin, h.CreateCategory)
		categories.PUT("/:id", requireUser, requireAdmin, h.UpdateCategory)
		categories.DELETE("/:id", requireUser, requireAdmin, h.DeleteCategory)

		cart := v1.Group("/cart", requireUser)
		cart.GET("", h.GetCart)
		cart.DELETE("", h.ClearCart)
		cart.POST("/items", h.AddCartItem)
		cart.PUT("/items", h.UpdateCartItem)
		cart.DELETE("/items/:productId", h.RemoveCartItem)

		orders := v1.Group("/orders", requireUser)
		orders.POST("/checkout", h.Checkout)
		orders.GET("/mine", h.ListMyOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.GET("", requireAdmin, h.ListOrders)
		orders.PUT("/:id/confirm", requireAdmin, h.ConfirmOrder)
		orders.PUT("/:id/status", requireAdmin, h.UpdateOrderStatus)
		orders.DELETE("/:id", requireAdmin, h.DeleteOrder)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the rate limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}
