package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"inventory-stream/api"
	"inventory-stream/bus"
	"inventory-stream/cache"
	"inventory-stream/domain"
	"inventory-stream/notify"
	"inventory-stream/relay"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	ttl := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		ttl = d
	}
	maxEntries := 10000
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatalf("invalid CACHE_MAX_ENTRIES: %v", err)
		}
		maxEntries = n
	}
	channel := os.Getenv("EVENTS_CHANNEL")
	if channel == "" {
		channel = bus.DefaultChannel
	}

	searchCache := cache.NewSearchCache(rc, logger, ttl, maxEntries)
	hub := notify.NewSSEHub(logger)

	// In relay mode this instance reacts to events other processes publish,
	// so the local bus must not republish them back onto the channel.
	relayMode := os.Getenv("RELAY_MODE") == "1"
	var eventBus *bus.Bus
	if relayMode {
		eventBus = bus.New(nil, channel, logger)
	} else {
		eventBus = bus.New(rc, channel, logger)
	}
	defer eventBus.Close()

	invalidator := cache.NewInvalidator(searchCache, logger)
	if err := eventBus.Subscribe(invalidator.Subscription()); err != nil {
		log.Fatalf("subscribe invalidator: %v", err)
	}
	notifier := notify.NewNotifier(hub, logger)
	if err := eventBus.Subscribe(notifier.Subscription()); err != nil {
		log.Fatalf("subscribe notifier: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if relayMode {
		r := relay.New(rc, channel, func(ctx context.Context, ev domain.ChangeEvent) {
			if err := eventBus.Dispatch(ctx, ev); err != nil {
				logger.Errorf("relay dispatch: %v", err)
			}
		}, logger)
		go r.Run(ctx)
	}

	e := echo.New()
	e.Use(otelecho.Middleware("inventory-stream"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, searchCache, hub, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		listenAddr = val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form managed deployments hand out.
func parseRedisOptions(conn string) *redis.Options {
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
