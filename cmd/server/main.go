package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	echoapi "github.com/atlasgg/storefront/api/echo"
	"github.com/atlasgg/storefront/atlas"
	"github.com/atlasgg/storefront/cart"
	"github.com/atlasgg/storefront/checkout"
	"github.com/atlasgg/storefront/config"
	"github.com/atlasgg/storefront/linking"
	"github.com/atlasgg/storefront/maintenance"
	"github.com/atlasgg/storefront/paynow"
	"github.com/atlasgg/storefront/referral"
	"github.com/atlasgg/storefront/session"
	"github.com/atlasgg/storefront/storage"
	"github.com/atlasgg/storefront/storage/mongostore"
	"github.com/atlasgg/storefront/storage/redisstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)
	zlog.Info().
		Str("http_port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("storage", cfg.StorageBackend).
		Msg("starting storefront gateway")

	ctx := context.Background()

	blobs, cleanup, err := newBlobStore(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize storage backend")
	}
	defer cleanup()

	sessions := session.NewStore(blobs)
	cartStore := cart.NewStore(ctx, blobs)
	referrals := referral.NewRecorder(blobs)

	atlasClient, err := atlas.New(atlas.Config{
		BaseURL:    cfg.AtlasBaseURL,
		IngressURL: cfg.AtlasIngressURL,
	}, sessions)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize Atlas client")
	}
	payments, err := paynow.New(paynow.Config{
		BaseURL: cfg.PayNowBaseURL,
		APIKey:  cfg.PayNowAPIKey,
	}, sessions)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize PayNow client")
	}

	processor := linking.NewProcessor(sessions)
	defer processor.Close()

	checkouts := checkout.NewService(cartStore, payments, referrals,
		cfg.CheckoutReturnURL, cfg.CheckoutCancelURL)

	gate := maintenance.NewGate(cfg.MaintenanceEnabled, cfg.IsProduction(),
		cfg.MaintenanceTargets, cfg.MaintenanceExclusions)

	api := echoapi.NewStorefrontAPI(
		sessions, cartStore, processor, atlasClient, payments, checkouts,
		linking.NewSteamProvider(atlasClient),
		linking.NewDiscordProvider(atlasClient),
		linking.NewGoogleProvider(atlasClient),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(echoapi.RequestLogger())
	e.Use(maintenance.Middleware(gate))
	e.Use(referral.Middleware(referrals))
	api.RegisterRoutes(e)

	go func() {
		addr := ":" + cfg.HTTPPort
		zlog.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	received := <-quit
	zlog.Info().Str("signal", received.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("HTTP server shutdown error")
	}
	zlog.Info().Msg("server gracefully stopped")
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		zlog.Warn().Str("configured_log_level", cfg.LogLevel).Msg("invalid LOG_LEVEL, defaulting to info")
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.LogPretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zlog.Logger = logger
}

// newBlobStore builds the configured storage backend. The returned cleanup
// closes whatever connection the backend holds.
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryStore(), func() {}, nil

	case config.StorageFile:
		store, err := storage.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				zlog.Warn().Err(err).Msg("failed to close Redis client")
			}
		}
		return redisstore.New(client, cfg.RedisPrefix), cleanup, nil

	case config.StorageMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				zlog.Warn().Err(err).Msg("failed to disconnect MongoDB client")
			}
		}
		return mongostore.New(client.Database(cfg.MongoDBName)), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
