// Package container wires the application services with samber/do.
package container

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis_rate/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/throttled-analytics/internal/analytics"
	"github.com/serroba/throttled-analytics/internal/audit"
	"github.com/serroba/throttled-analytics/internal/handlers"
	"github.com/serroba/throttled-analytics/internal/health"
	"github.com/serroba/throttled-analytics/internal/messaging"
	"github.com/serroba/throttled-analytics/internal/metrics"
	"github.com/serroba/throttled-analytics/internal/middleware"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
	"github.com/serroba/throttled-analytics/internal/store"
	"go.uber.org/zap"
)

// Report backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ConsumerGroupName is the Redis stream consumer group of the audit consumer.
const ConsumerGroupName = "throttle-audit"

// DefaultStreamMaxLen caps the throttle stream when no bound is configured.
const DefaultStreamMaxLen int64 = 10000

// Options are read from flags and SERVICE_* environment variables.
type Options struct {
	Port          int           `default:"5555"      doc:"Port to listen on"                                             short:"p"`
	RedisHost     string        `default:"localhost" doc:"Redis host"`
	RedisPort     int           `default:"6379"      doc:"Redis port"`
	RedisPassword string        `default:""          doc:"Redis password"`
	RedisDB       int           `default:"0"         doc:"Redis database number"`
	RedisTimeout  time.Duration `default:"3s"        doc:"Redis dial, read and write timeout"`
	DatabaseURL   string        `default:""          doc:"PostgreSQL URL; empty falls back to the PG* environment variables"`
	Backend       string        `default:"postgres"  doc:"Report backend (postgres or memory)"`
	CacheTTL      time.Duration `default:"30s"       doc:"Report cache TTL in Redis; 0 disables the cache"`
	StreamMaxLen  int64         `default:"10000"     doc:"Approximate number of throttle events kept in the Redis stream"`
	Capacity      int64         `default:"15"        doc:"Requests allowed per client per window"                        short:"c"`
	Window        time.Duration `default:"60s"       doc:"Rate limit window"                                             short:"w"`
	TrustProxy    bool          `default:"false"     doc:"Derive the client from X-Client-IP, X-Forwarded-For and X-Real-IP"`
	LogFormat     string        `default:"console"   doc:"Log format (console or json)"`
	LogLevel      string        `default:"info"      doc:"Log level"`
}

// RedisAddr joins host and port.
func (o *Options) RedisAddr() string {
	return net.JoinHostPort(o.RedisHost, strconv.Itoa(o.RedisPort))
}

// RateLimitConfig builds the shared limiter config.
func (o *Options) RateLimitConfig() ratelimit.Config {
	cfg := ratelimit.DefaultConfig()

	if o.Capacity > 0 {
		cfg.Capacity = o.Capacity
	}

	if o.Window > 0 {
		cfg.Window = o.Window
	}

	return cfg
}

// ThrottleStreamMaxLen is the trim bound applied to every throttle event XADD.
func (o *Options) ThrottleStreamMaxLen() int64 {
	if o.StreamMaxLen > 0 {
		return o.StreamMaxLen
	}

	return DefaultStreamMaxLen
}

// LoggerPackage provides *zap.Logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a development logger for console output or a production
// logger for json.
func NewLogger(format, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		cfg.Level = lvl
	}

	return cfg.Build()
}

// RedisPackage provides the single pooled *redis.Client shared by every
// component. The client is closed by the binary after the injector shuts down
// since services still flush through it.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		opts := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr(),
			Password:     opts.RedisPassword,
			DB:           opts.RedisDB,
			DialTimeout:  opts.RedisTimeout,
			ReadTimeout:  opts.RedisTimeout,
			WriteTimeout: opts.RedisTimeout,
		}), nil
	})
}

// PostgresPackage provides *store.PostgresStore over a pgx pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.PostgresStore, error) {
		opts := do.MustInvoke[*Options](i)

		cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}

		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}

		return store.NewPostgresStore(pool), nil
	})
}

// MemoryStorePackage provides an empty *store.MemoryStore for Backend=memory.
// Callers wanting rows provide their own seeded store instead.
func MemoryStorePackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*store.MemoryStore, error) {
		return store.NewMemoryStore(store.Dataset{}), nil
	})
}

// RepositoryPackage provides analytics.Repository, cached in Redis when CacheTTL is set.
// Backend=memory reads the *store.MemoryStore registered by MemoryStorePackage.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo analytics.Repository

		switch opts.Backend {
		case BackendMemory:
			repo = do.MustInvoke[*store.MemoryStore](i)
		case BackendPostgres, "":
			repo = do.MustInvoke[*store.PostgresStore](i)
		default:
			return nil, fmt.Errorf("unknown backend %q", opts.Backend)
		}

		if opts.CacheTTL <= 0 {
			return repo, nil
		}

		return store.NewRedisCacheRepository(
			repo, do.MustInvoke[*redis.Client](i), opts.CacheTTL, do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (health.Checker, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.Backend == BackendMemory {
			return do.MustInvoke[*store.MemoryStore](i), nil
		}

		return do.MustInvoke[*store.PostgresStore](i), nil
	})
}

// RateLimitPackage provides the three strategies behind a *ratelimit.Selector
// and the *ratelimit.IdentityResolver.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.Selector, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)
		cfg := opts.RateLimitConfig()
		counters := store.NewRedisCounterStore(client)

		return ratelimit.NewSelector(map[ratelimit.Version]ratelimit.Strategy{
			ratelimit.VersionTokenBucket: ratelimit.NewTokenBucket(redis_rate.NewLimiter(client), cfg),
			ratelimit.VersionSlidingLog:  ratelimit.NewSlidingLog(counters, cfg),
			ratelimit.VersionFixedWindow: ratelimit.NewFixedWindow(counters, cfg),
		}, ratelimit.DefaultVersion)
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.IdentityResolver, error) {
		return ratelimit.NewIdentityResolver(do.MustInvoke[*Options](i).TrustProxy), nil
	})
}

// PublisherGroupPackage provides the Redis stream publisher and the typed
// throttle event publish function.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     do.MustInvoke[*redis.Client](i),
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			Maxlens: map[string]int64{
				audit.TopicThrottled: opts.ThrottleStreamMaxLen(),
			},
			DefaultMaxlen: opts.ThrottleStreamMaxLen(),
		}, watermillLogger(i))
		if err != nil {
			return nil, fmt.Errorf("create stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[audit.ThrottleEvent], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[audit.ThrottleEvent](group.Publisher(), audit.TopicThrottled), nil
	})
}

// MetricsPackage provides the Prometheus *metrics.Recorder.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Recorder, error) {
		return metrics.NewRecorder(), nil
	})
}

// HTTPPackage provides the chi router and the huma API with middleware and
// routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Use(cors.AllowAll().Handler)

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		recorder := do.MustInvoke[*metrics.Recorder](i)
		selector := do.MustInvoke[*ratelimit.Selector](i)
		identity := do.MustInvoke[*ratelimit.IdentityResolver](i)

		newID, err := nanoid.Standard(21)
		if err != nil {
			return nil, fmt.Errorf("request id generator: %w", err)
		}

		router.Method(http.MethodGet, "/metrics", recorder.Handler())

		api := humachi.New(router, huma.DefaultConfig("Throttled Analytics", "1.0.0"))

		api.UseMiddleware(
			middleware.RequestMeta(api, identity, newID),
			middleware.RateLimiter(api, middleware.RateLimiterDeps{
				Selector: selector,
				Identity: identity,
				Logger:   logger,
				Publish:  do.MustInvoke[messaging.Publish[audit.ThrottleEvent]](i),
				Recorder: recorder,
			}),
		)

		handlers.RegisterRoutes(api,
			handlers.NewAnalyticsHandler(do.MustInvoke[analytics.Repository](i), logger),
			handlers.NewQuotaHandler(selector),
		)

		health.RegisterRoutes(api, health.NewHandler(
			health.NewRedisChecker(do.MustInvoke[*redis.Client](i)),
			do.MustInvoke[health.Checker](i),
			2*time.Second,
		))

		return api, nil
	})
}

// ConsumerGroupPackage provides the audit *messaging.ConsumerGroup reading the
// throttle stream.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[*redis.Client](i),
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: ConsumerGroupName,
		}, watermillLogger(i))
		if err != nil {
			return nil, fmt.Errorf("create stream subscriber: %w", err)
		}

		sink := audit.NewLogSink(logger)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(subscriber, audit.TopicThrottled, sink.Record, logger))

		return group, nil
	})
}

func watermillLogger(i *do.Injector) watermill.LoggerAdapter {
	return messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))
}
