package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	authlib "github.com/coopfeathy/authlib-django"
	echoapi "github.com/coopfeathy/authlib-django/api/echo"
	"github.com/coopfeathy/authlib-django/cache"
	redisstore "github.com/coopfeathy/authlib-django/cache/redis"
	"github.com/coopfeathy/authlib-django/config"
	"github.com/coopfeathy/authlib-django/internal/memstore"
	"github.com/coopfeathy/authlib-django/internal/metrics"
	"github.com/coopfeathy/authlib-django/mongodb"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("issuer", cfg.Issuer).
		Bool("mongo", cfg.MongoURI != "").
		Bool("redis", cfg.RedisAddr != "").
		Msg("starting authorization server")

	ctx := context.Background()

	stores, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize stores")
	}
	defer closeStores()

	var tokenCache cache.TokenStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		tokenCache = redisstore.NewTokenStore(rdb, cfg.RedisPrefix)
	} else {
		tokenCache = cache.NewMemoryTokenStore(time.Minute)
	}
	defer tokenCache.Close()

	srv := authlib.NewAuthorizationServer(stores, authlib.Options{
		Issuer:              cfg.Issuer,
		ScopesSupported:     cfg.Scopes(),
		AuthCodeTTL:         cfg.AuthCodeTTL(),
		AccessTokenTTL:      cfg.AccessTokenTTL(),
		RefreshTokenTTL:     cfg.RefreshTokenTTL(),
		DeviceCodeTTL:       cfg.DeviceCodeTTL(),
		DeviceCodeInterval:  cfg.DeviceCodeIntervalSec,
		VerificationURI:     cfg.VerificationURI,
		RotateRefreshTokens: cfg.RotateRefreshTokens,
	})
	revocation := authlib.NewRevocationEndpoint(srv, tokenCache)

	metrics.Register(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Resource-owner identity comes from the front proxy. A deployment with a
	// real login surface replaces this callback.
	owner := func(c echo.Context) (string, bool) {
		userID := c.Request().Header.Get("X-Authenticated-User")
		return userID, userID != ""
	}
	echoapi.NewOAuth2API(srv, revocation, owner).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}

// buildStores wires the persistence layer: MongoDB when configured, otherwise
// in-memory stores suitable for development.
func buildStores(ctx context.Context, cfg *config.ServerConfig) (authlib.Stores, func(), error) {
	if cfg.MongoURI == "" {
		log.Warn().Msg("no MONGO_URI configured, using in-memory stores")
		return authlib.Stores{
			Clients: memstore.NewClientStore(),
			Codes:   memstore.NewAuthCodeStore(),
			Tokens:  memstore.NewTokenStore(),
			Devices: memstore.NewDeviceAuthStore(),
		}, func() {}, nil
	}

	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return authlib.Stores{}, nil, err
	}
	db := client.Database(cfg.MongoDBName)
	stores := authlib.Stores{
		Clients: mongodb.NewClientRepository(db),
		Codes:   mongodb.NewAuthCodeRepository(db),
		Tokens:  mongodb.NewTokenRepository(db),
		Devices: mongodb.NewDeviceAuthRepository(db),
	}
	closer := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect error")
		}
	}
	return stores, closer, nil
}
