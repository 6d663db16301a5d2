package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seat-reservation/internal/clock"
	"github.com/iliyamo/seat-reservation/internal/config"
	"github.com/iliyamo/seat-reservation/internal/database"
	"github.com/iliyamo/seat-reservation/internal/handler"
	"github.com/iliyamo/seat-reservation/internal/middleware"
	"github.com/iliyamo/seat-reservation/internal/queue"
	"github.com/iliyamo/seat-reservation/internal/repository"
	"github.com/iliyamo/seat-reservation/internal/repository/memory"
	"github.com/iliyamo/seat-reservation/internal/repository/postgres"
	"github.com/iliyamo/seat-reservation/internal/reservation"
	"github.com/iliyamo/seat-reservation/internal/router"
	"github.com/iliyamo/seat-reservation/internal/service"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	registry := reservation.NewRegistry(store)
	if err := registry.Load(ctx, catalog); err != nil {
		log.Fatalf("load seat catalog: %v", err)
	}
	log.Printf("seat catalog loaded (%d seats)", registry.Size())

	clk := clock.NewSystem()
	ledger := reservation.NewLedger(store, clk)
	opts := []reservation.Option{reservation.WithHoldTTL(cfg.HoldTTL)}

	// Booking events: publish to RabbitMQ and consume them into the audit log.
	if url := cfg.BrokerURL(); url != "" {
		pub := service.NewPublisher(url)
		defer pub.Close()
		opts = append(opts, reservation.WithEventPublisher(pub))
		go func() {
			if err := queue.StartBookingConsumer(ctx, url, cfg.AuditLogPath); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: %v", err)
			}
		}()
	} else {
		log.Printf("RABBITMQ_URL not set; booking events disabled")
	}

	coord := reservation.NewCoordinator(store, registry, ledger, clk, opts...)

	sweeper := reservation.NewSweeper(store, coord, clk, reservation.SweeperConfig{
		Interval: cfg.SweepInterval,
		Batch:    cfg.SweepBatch,
	})
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sweeper: %v", err)
		}
	}()

	passwordHash := adminPasswordHash(cfg)

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	booking := handler.NewBookingHandler(coord)
	router.RegisterRoutes(e, booking)
	router.RegisterPublic(e, booking, limit)
	router.RegisterAdmin(e,
		handler.NewAuthHandler(cfg.JWTSecret, passwordHash, cfg.AccessTTL()),
		handler.NewAdminHandler(coord),
		cfg.JWTSecret,
		limit,
	)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStore connects the configured backend and applies its migrations.
func openStore(ctx context.Context, cfg config.Config) (reservation.Store, func()) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Printf("using in-memory store; data is lost on exit")
		return memory.New(), func() {}
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		if err := database.ApplyPostgres(ctx, pool); err != nil {
			log.Fatalf("postgres migrations: %v", err)
		}
		return postgres.NewStore(pool), pool.Close
	default:
		db, err := database.OpenMySQL(ctx, cfg.MySQL(), cfg.DBConnectTimeout)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		if err := database.ApplyMySQL(ctx, db); err != nil {
			log.Fatalf("mysql migrations: %v", err)
		}
		return repository.NewStore(db), func() { _ = db.Close() }
	}
}

// adminPasswordHash returns ADMIN_PASSWORD_HASH, or hashes ADMIN_PASSWORD.
func adminPasswordHash(cfg config.Config) string {
	hash, err := utils.AdminPasswordHash(cfg.AdminPasswordHash, cfg.AdminPassword, cfg.BcryptCost)
	if errors.Is(err, utils.ErrNoAdminPassword) {
		log.Fatalf("config: ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required")
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return hash
}
