package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"dibs/internal/config"
	"dibs/internal/database"
	"dibs/internal/handler"
	"dibs/internal/middleware"
	"dibs/internal/notify"
	"dibs/internal/repository"
	"dibs/internal/router"
	"dibs/internal/service"
	"dibs/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting off, settings reads uncached")
	}

	envs := repository.NewEnvironmentRepo(db)
	holds := repository.NewHoldRepo(db)
	queue := repository.NewQueueRepo(db)
	settings := repository.NewSettingsRepo(db, rdb)
	admins := repository.NewAdminRepo(db, cfg.AdminUsers)

	// Allowlisted admins get login credentials so the REST API is usable
	// before any chat-side provisioning has happened.
	bctx, bcancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := admins.Bootstrap(bctx, cfg.AdminPassword, cfg.BcryptCost, time.Now().Unix()); err != nil {
		bcancel()
		log.Fatalf("admin bootstrap: %v", err)
	}
	bcancel()
	if cfg.AdminPassword == "" {
		log.Printf("ADMIN_PASSWORD unset; admin REST login disabled until a password is provisioned")
	}

	publisher := notify.NewAMQPPublisher(notify.BrokerURL())
	engine := service.NewEngine(db, envs, holds, queue, settings, publisher, nil)
	sweeper := service.NewSweeper(db, envs, holds, queue, settings, publisher, nil)

	stopSweep, err := worker.StartSweep(sweeper, cfg.SweepInterval)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer stopSweep()

	// Deliveries (DMs, announcements) drain from the broker in-process.
	go func() {
		if err := notify.StartConsumer(); err != nil {
			log.Printf("notify-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterRoutes(e)
	router.RegisterCommands(e,
		handler.NewCommandHandler(engine, envs, admins, settings), cfg.SigningSecret)
	router.RegisterAdmin(e,
		handler.NewAuthHandler(cfg, admins),
		handler.NewAdminEnvHandler(envs, engine),
		handler.NewAdminSettingsHandler(settings),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
