package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Abdulkalam0018/roadresq/internal/auth"
	"github.com/Abdulkalam0018/roadresq/internal/chat"
	"github.com/Abdulkalam0018/roadresq/internal/config"
	"github.com/Abdulkalam0018/roadresq/internal/events"
	"github.com/Abdulkalam0018/roadresq/internal/httpapi"
	"github.com/Abdulkalam0018/roadresq/internal/logger"
	"github.com/Abdulkalam0018/roadresq/internal/middleware"
	"github.com/Abdulkalam0018/roadresq/internal/presence"
	"github.com/Abdulkalam0018/roadresq/internal/storage"
	"github.com/Abdulkalam0018/roadresq/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = os.Getenv("ACCESS_TOKEN_SECRET")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("jwt secret is required (jwt.secret or ACCESS_TOKEN_SECRET)")
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Connect(ctx, cfg.Mongo)
	if err != nil {
		zlog.Fatalw("mongo connect", "uri", cfg.Mongo.URI, "err", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Client().Disconnect(shutCtx)
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Warnw("redis unavailable, presence and rate limiting degraded", "addr", cfg.Redis.Addr, "err", err)
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, zlog)
		defer publisher.Close()
	}

	verifier := auth.NewVerifier(cfg.JWT.Secret)
	hub := ws.NewHub(zlog)
	presenceStore := presence.NewStore(rdb, cfg.Redis.Prefix)

	convs := storage.NewConversationRepo(db)
	msgs := storage.NewMessageRepo(db)
	users := storage.NewUserRepo(db)

	var eventSink chat.EventPublisher
	if publisher != nil {
		eventSink = publisher
	}
	svc := chat.NewService(convs, msgs, users, hub, eventSink, zlog)

	wsHandler := ws.NewHandler(hub, svc, verifier, presenceStore, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		PongWait:      cfg.PongWait,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
		SendBuffer:    cfg.WS.SendBuffer,
	}, zlog)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	httpapi.Register(app, httpapi.RouterDeps{
		Chat:       httpapi.NewChatHandler(svc, presenceStore, zlog),
		WS:         wsHandler,
		Verifier:   verifier,
		RateLimit:  middleware.NewRateLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.Limit, cfg.RateLimitWindow),
		CORSOrigin: cfg.App.CORSOrigin,
	})

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(":" + cfg.App.Port)
	}()
	zlog.Infow("server started", "port", cfg.App.Port)

	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case <-ctx.Done():
		zlog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutCtx); err != nil {
		zlog.Warnw("fiber shutdown", "err", err)
	}
	zlog.Info("server stopped")
}
