package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jevenson76/atl-dashboards/api"
	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/listapi"
	"github.com/jevenson76/atl-dashboards/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())
	logger.SetFormatter(&log.JSONFormatter{})

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	listCfg, err := listapi.LoadConfig(os.Getenv("LISTAPI_CONFIG"))
	if err != nil {
		log.Fatalf("list api config: %v", err)
	}
	if err := listCfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("list api config: %v", err)
	}
	host, err := listapi.HostFromConfig(listCfg)
	if err != nil {
		log.Fatalf("list api host: %v", err)
	}
	var clientOpts []listapi.Option
	if token := os.Getenv("LISTAPI_ACCESS_TOKEN"); token != "" {
		clientOpts = append(clientOpts, listapi.WithHeader(echo.HeaderAuthorization, "Bearer "+token))
	}
	client := listapi.NewClient(listCfg, host, listapi.NewState(), logger, clientOpts...)

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	settingsTableName := os.Getenv("SETTINGS_TABLE")
	editsQueueName := os.Getenv("EDITS_QUEUE")
	if connStr == "" || settingsTableName == "" || editsQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, settingsTableName, editsQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedis(redisConn))
	defer rc.Close()

	settingsTTL := durationEnv("SETTINGS_CACHE_TTL", 5*time.Minute)
	cache := storage.NewCache(store, rc, settingsTTL)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("edits queue unreachable at startup")
	}
	cancelPing()
	deduper := api.NewRedisDeduper(rc, durationEnv("DEDUPER_TTL", 24*time.Hour))

	auth := newAuth()

	noteLimit := board.DefaultNoteLimit
	if v := os.Getenv("NOTE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatalf("invalid NOTE_LIMIT: %q", v)
		}
		noteLimit = n
	}
	registry := board.NewRegistry(
		board.NewLoader(client, logger),
		cache,
		board.RegistryOptions{
			NoteLimit:      noteLimit,
			SearchDebounce: durationEnv("SEARCH_DEBOUNCE", 300*time.Millisecond),
		},
		logger,
	)
	defer registry.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))

	srv := api.Register(e, api.Options{
		Sessions: registry,
		Status:   client,
		Queue:    cache,
		Auth:     auth,
		Deduper:  deduper,
		Logger:   logger,
		Dispatch: api.DispatchConfigFromEnv(),
	})
	defer srv.Close()

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
}

// newAuth picks shared-secret tokens for tests and local runs, JWKS-verified
// Auth0 tokens otherwise.
func newAuth() *api.Auth {
	keyTTL := durationEnv("JWKS_CACHE_TTL", api.DefaultJWKSCacheTTL)
	if os.Getenv("AUTH0_TEST_MODE") == "1" {
		secret := os.Getenv("TEST_JWT_SECRET")
		if secret == "" {
			log.Fatal("AUTH0_TEST_MODE requires TEST_JWT_SECRET")
		}
		return api.NewAuth(api.AuthConfig{SharedSecret: []byte(secret)})
	}
	if strings.EqualFold(os.Getenv("LOCAL_AUTH_MODE"), "hs256") {
		secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
		if secret == "" {
			log.Fatal("LOCAL_AUTH_MODE=hs256 requires LOCAL_AUTH_SHARED_SECRET")
		}
		return api.NewAuth(api.AuthConfig{
			SharedSecret: []byte(secret),
			Audience:     os.Getenv("AUTH0_AUDIENCE"),
		})
	}

	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(api.AuthConfig{
		JWKS:        jwks,
		Audience:    jwtAudience,
		Issuer:      "https://" + domain + "/",
		KeyCacheTTL: keyTTL,
	})
}

// parseRedis accepts a redis:// URL or an Azure-style
// "host:port,password=...,ssl=True" connection string.
func parseRedis(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return d
}
