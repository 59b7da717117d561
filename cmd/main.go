package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/api"
	"github.com/fathima-sithara/support-chat/internal/auth"
	"github.com/fathima-sithara/support-chat/internal/chat"
	"github.com/fathima-sithara/support-chat/internal/config"
	"github.com/fathima-sithara/support-chat/internal/crypto"
	"github.com/fathima-sithara/support-chat/internal/events"
	"github.com/fathima-sithara/support-chat/internal/logger"
	"github.com/fathima-sithara/support-chat/internal/relay"
	"github.com/fathima-sithara/support-chat/internal/store"
	"github.com/fathima-sithara/support-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	cs, err := crypto.NewService(cfg.Crypto.EncryptionKey)
	if err != nil {
		zlog.Fatal("crypto init", zap.Error(err))
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "mongo":
		mc, err := store.NewMongoClient(context.Background(), cfg.Mongo.URI)
		if err != nil {
			zlog.Fatal("mongo init", zap.Error(err))
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		st = store.NewMongo(mc.Database(cfg.Mongo.DB), rdb, zlog)
	default:
		st = store.NewMemory()
	}

	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
	defer func() { _ = pub.Close() }()

	bridge := relay.New(cfg.Webhook.URL, cfg.Webhook.Timeout(), zlog)
	svc := chat.NewService(st, cs, bridge, pub, zlog)

	app := api.NewServer(cfg, api.Deps{
		Service: svc,
		Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret),
		Grants:  auth.NewStaticGrants(cfg.Auth.AdminEmail),
		Creds: auth.Credentials{
			Email:        cfg.Auth.AdminEmail,
			PasswordHash: cfg.Auth.AdminPasswordHash,
		},
		Streamer: ws.NewStreamer(st, zlog),
		Log:      zlog,
	})

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zlog.Fatal("server listen", zap.Error(err))
		}
	}()
	zlog.Info("support-chat started",
		zap.String("port", cfg.App.PortString()),
		zap.String("store", cfg.Store.Driver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Info("support-chat stopped")
}
