package main

import (
	"context"
	"log"
	"time"

	"filmbox/config"
	"filmbox/internal/gateway"
	"filmbox/internal/handler"
	"filmbox/internal/redis"
	"filmbox/internal/repository"
	"filmbox/internal/server"
	"filmbox/internal/services"
	"filmbox/internal/uploader"
	"filmbox/internal/websocket"
	"filmbox/pkg/database"
	"filmbox/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	database.Connect(cfg)
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	publisher := redis.NewPublisher(redisClient)
	subscriber := redis.NewSubscriber(redisClient)
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	gw := gateway.NewClient(cfg.GatewayBaseURL, time.Duration(cfg.GatewayTimeoutSec)*time.Second)
	repos := repository.New(database.DB)
	registry := uploader.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var factory uploader.TransportFactory
	switch cfg.UploadTransport {
	case "s3":
		s3Client, err := uploader.NewS3Client(ctx, uploader.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		factory = uploader.NewS3Factory(s3Client, cfg.S3Bucket, cfg.ChunkSizeBytes)
	default:
		factory = uploader.NewHTTPFactory(uploader.HTTPConfig{
			Endpoint:  cfg.UploadEndpoint,
			ChunkSize: cfg.ChunkSizeBytes,
		})
	}

	uploadService := services.NewUploadService(repos.Uploads, gw, registry, factory, publisher, cfg.UploadEndpoint, l)
	if err := uploadService.RecoverActive(ctx); err != nil {
		l.Errorf("Failed to recover upload sessions: %s", err)
	}
	videoService := services.NewVideoService(gatewayVideoAdapter{gw})

	poller := services.NewTranscodePoller(repos.Uploads, gw, uploadService,
		time.Duration(cfg.PollIntervalSec)*time.Second, l)
	poller.Start(ctx)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("Redis bridge stopped: %s", err)
		}
	}()

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Upload: handler.NewUploadHandler(uploadService),
		Video:  handler.NewVideoHandler(videoService),
		WS:     websocket.NewHandler(hub),
	}, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

// gatewayVideoAdapter narrows the gateway client to the video service's view.
type gatewayVideoAdapter struct {
	client *gateway.Client
}

func (a gatewayVideoAdapter) GetUploadRecord(ctx context.Context, filmID string) (services.UploadRecordView, error) {
	rec, err := a.client.GetUploadRecord(ctx, filmID)
	if err != nil {
		return services.UploadRecordView{}, err
	}
	return services.UploadRecordView{
		ID:           rec.ID,
		FileID:       rec.FileID,
		Status:       rec.Status,
		StreamURL:    rec.StreamURL,
		ThumbnailURL: rec.ThumbnailURL,
		Playable:     rec.Playable,
	}, nil
}

func (a gatewayVideoAdapter) GetTranscodeStatus(ctx context.Context, fileID string) (bool, error) {
	return a.client.GetTranscodeStatus(ctx, fileID)
}

func (a gatewayVideoAdapter) SetManualVideoLink(ctx context.Context, filmID, videoURL, password string) error {
	return a.client.SetManualVideoLink(ctx, filmID, videoURL, password)
}
