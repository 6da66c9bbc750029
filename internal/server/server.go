package server

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
	users  service.UserService
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// Repositories
	userRepo := repository.NewUserRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	orderStore := repository.NewOrderStore(db.DB(), logger)

	// Services
	tokens := service.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL())
	authorizer := service.NewAuthorizer(userRepo)
	userService := service.NewUserService(userRepo, tokens, logger)
	productService := service.NewProductService(productRepo, authorizer, logger)
	orderService := service.NewOrderService(orderStore, userRepo, authorizer, logger)

	guards := transport.Guards{
		Auth: custommiddleware.AuthMiddleware(tokens, logger),
		RateLimit: custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            time.Duration(cfg.RateLimit.Window) * time.Second,
			KeyPrefix:         "storefront:rate_limit",
		}, logger),
		RequireRole: func(role domain.Role) func(http.Handler) http.Handler {
			return custommiddleware.RequireRole(authorizer, role, logger)
		},
	}

	transport.NewUserHandler(userService, logger).RegisterRoutes(router, guards)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, guards)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, guards)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		logger: logger,
		db:     db,
		redis:  redisClient,
		users:  userService,
	}
}

// Users exposes the user service for startup tasks such as admin bootstrap
func (s *Server) Users() service.UserService {
	return s.users
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
