package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/cache"
	"ticket-exchange/internal/catalog"
	"ticket-exchange/internal/database"
	"ticket-exchange/internal/handler"
	"ticket-exchange/internal/matcher"
	"ticket-exchange/internal/middleware"
	"ticket-exchange/internal/payment"
	"ticket-exchange/internal/queue"
	"ticket-exchange/internal/repository"
	"ticket-exchange/internal/service"
	"ticket-exchange/internal/transfer"
	"ticket-exchange/internal/worker"
	"ticket-exchange/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.WithComponent("server")
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Warn("invalid LOG_LEVEL, keeping info", zap.String("level", cfg.LogLevel))
	}
	defer logger.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := database.InitDatabase(initCtx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.EnsureSchema(initCtx, pool); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	rdb, err := database.InitRedis(initCtx, &cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	consumerID := fmt.Sprintf("%s-%s", hostname(), uuid.NewString()[:8])
	sagaQueue, err := queue.NewRedisStreamSagaEventQueue(initCtx, rdb, consumerID, cfg.Queue)
	if err != nil {
		log.Fatal("Failed to initialize saga event stream", zap.Error(err))
	}

	tickets := repository.NewTicketRepository(pool)
	sagaEvents := repository.NewSagaEventRepository(pool)

	eventMatcher := matcher.New(catalog.NewHTTPSource(cfg.Catalog, cfg.Breaker), cfg.Catalog.SeasonCode)
	listing := service.NewListingService(tickets, sagaEvents, eventMatcher)
	purchase := service.NewPurchaseService(service.PurchaseDeps{
		Tickets:   tickets,
		Payments:  payment.NewStripeGateway(cfg.Payment, cfg.Breaker),
		Transfers: transfer.NewHTTPGateway(cfg.Transfer, cfg.Breaker),
		Events:    sagaQueue,
	})

	if err := worker.NewAuditWorker(sagaEvents, sagaQueue).Start(ctx); err != nil {
		log.Fatal("Failed to start audit worker", zap.Error(err))
	}
	worker.NewReservationReaper(purchase, cfg.Reservation).Start(ctx)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1", middleware.Authenticate(cfg.Server.JWTSecret))
	handler.NewTicketHandler(listing).RegisterRoutes(api)

	idempotent := api.Group("", middleware.Idempotency(cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)))
	handler.NewPurchaseHandler(purchase).RegisterRoutes(idempotent)

	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	handler.NewAdminHandler(listing, purchase).RegisterRoutes(admin)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server startup failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "ticket-exchange"
	}
	return name
}
