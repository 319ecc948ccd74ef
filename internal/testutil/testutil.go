package testutil

import (
	"context"
	"fmt"
	"log"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/database"
	"ticket-exchange/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// SetupDatabase 連線測試 DB 並建立 schema，連不上時回傳錯誤讓呼叫端跳過整合測試
func SetupDatabase() (*pgxpool.Pool, func(), error) {
	cfg := config.LoadTestConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize test database: %v", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ensure schema: %v", err)
	}
	log.Println("Test database connected successfully")

	return pool, func() {
		pool.Close()
		log.Println("Test database closed")
	}, nil
}

// SetupRedisOnly 僅初始化 Redis，用於只依賴 Redis 的測試（如 queue 整合測試）
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %v", err)
	}
	return rdb, func() { rdb.Close() }, nil
}

// NewAvailableTicket 建立一張可購買的測試票券 (USD 25.00)
func NewAvailableTicket() *model.Ticket {
	return &model.Ticket{
		ID:       uuid.New(),
		Seller:   model.Identity{UserID: "seller-1", PatronID: "P-SELLER", Email: "seller@example.com"},
		Price:    decimal.RequireFromString("25.00"),
		Currency: "USD",
		Status:   model.TicketStatusAvailable,
		Seat:     model.SeatRef{Section: "101", Row: "A", Seat: "7"},
	}
}

// Buyer 測試用買家身分
func Buyer(id string) model.Identity {
	return model.Identity{UserID: id, PatronID: "P-" + id, Email: id + "@example.com"}
}
