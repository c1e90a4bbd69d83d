package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mchat/global"
	"mchat/logger"
	"mchat/service/chat"
	"mchat/service/storage"
	"mchat/tools/ids"
)

func main() {
	cfg := global.Load()
	defer logger.Sync()

	ids.SetNodeID(1)

	// redis mirror is optional; the gateway runs fine without it
	var mirror *storage.PresenceMirror
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cancel()
		if err != nil {
			logger.Warnf("[main] redis unavailable, presence mirror disabled: %v", err)
		} else {
			mirror = storage.NewPresenceMirror(rdb, cfg.PresenceTTL)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewMongoStore(ctx, storage.MongoConfig{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		Username:    cfg.MongoUser,
		Password:    cfg.MongoPassword,
		MaxPoolSize: 20,
	})
	cancel()
	if err != nil {
		logger.Errorf("[main] mongo connect failed: %v", err)
		return
	}

	srv := chat.NewServer(cfg, store, mirror)
	defer srv.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "gateway": cfg.GatewayID})
	})

	logger.Infof("[main] gateway %s listening on %s", cfg.GatewayID, cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Errorf("[main] http server failed: %v", err)
	}
}
