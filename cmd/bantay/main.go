package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/adapters/disk"
	fiberadapter "github.com/lborres/bantay/adapters/fiber"
	"github.com/lborres/bantay/adapters/memory"
	pgxadapter "github.com/lborres/bantay/adapters/pgx"
	redisadapter "github.com/lborres/bantay/adapters/redis"
	s3adapter "github.com/lborres/bantay/adapters/s3"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/config"
	"github.com/lborres/bantay/internal/logging"
	"github.com/lborres/bantay/pkg/crypto"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logFormat() string {
	format := []string{
		"${time}",
		"${status}|${latency}",
		"${ip}",
		"${method}|${path}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, err := logging.New(out, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := buildDeps(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{AppName: "bantay", Immutable: true})
	app.Use(logger.New(logger.Config{
		Format:     logFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		Stream:     out,
	}))

	httpConfig := fiberadapter.Config{
		CookieMaxAge: cfg.SessionMaxAge,
		CookieSecure: cfg.CookieSecure,
		Logger:       log,
	}
	if cfg.UploadBackend == "disk" {
		httpConfig.UploadDir = cfg.UploadDir
		httpConfig.UploadURLPrefix = cfg.UploadURLPrefix
	}

	b, err := bantay.New(bantay.Config{
		Storage:       d.storage,
		HTTP:          fiberadapter.New(app, httpConfig),
		Uploader:      d.uploader,
		ThrottleStore: d.throttle,
		CacheAdapter: bantay.NewSessionCache(bantay.CacheConfig{
			TTL:     cfg.SessionCacheTTL,
			MaxSize: cfg.SessionCacheSize,
		}),
		DisableCache:  cfg.CacheDisabled(),
		SessionConfig: &bantay.SessionConfig{MaxAge: cfg.SessionMaxAge},
		ThrottleConfig: &bantay.ThrottleConfig{
			MaxFailures:   cfg.ThrottleMaxFailures,
			BlockDuration: cfg.ThrottleBlockDuration,
		},
		PasswordHasher: d.hasher,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("could not create bantay instance: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "listening", "addr", cfg.Addr, "storage", cfg.Storage,
			"sessions", cfg.SessionStore, "throttle", cfg.ThrottleStore, "uploads", cfg.UploadBackend)
		return app.Listen(cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		b.RunSessionSweeper(gctx, cfg.SessionSweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type deps struct {
	storage  core.AuthStorage
	throttle core.ThrottleStore
	uploader core.Uploader
	hasher   crypto.PasswordHandler
}

// buildDeps connects the configured backends. cleanup is always safe to
// call, even after an error.
func buildDeps(ctx context.Context, cfg *config.Config, log logging.Logger) (*deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	d := &deps{}

	switch cfg.Storage {
	case "postgres":
		pool, err := pgxadapter.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)

		if err := pgxadapter.Migrate(ctx, pool); err != nil {
			return nil, cleanup, err
		}
		log.Info(ctx, "database migrated")
		d.storage = pgxadapter.New(pool)
	default:
		d.storage = memory.New()
	}

	var rdb goredis.UniversalClient
	if cfg.UsesRedis() {
		client, err := redisadapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })
		rdb = client
	}

	if cfg.SessionStore == "redis" {
		d.storage = core.CombineStorage(d.storage, redisadapter.NewSessionStore(rdb, redisadapter.DefaultPrefix))
	}
	if cfg.ThrottleStore == "redis" {
		d.throttle = redisadapter.NewThrottleStore(rdb, redisadapter.DefaultPrefix, cfg.ThrottleEntryTTL)
	}

	switch cfg.UploadBackend {
	case "s3":
		uploader, err := s3adapter.New(ctx, s3adapter.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, cleanup, err
		}
		d.uploader = uploader
	default:
		uploader, err := disk.New(cfg.UploadDir, cfg.UploadURLPrefix)
		if err != nil {
			return nil, cleanup, err
		}
		d.uploader = uploader
	}

	switch cfg.PasswordHasher {
	case "argon2":
		d.hasher = crypto.NewArgon2()
	default:
		d.hasher = crypto.NewBcrypt(cfg.BcryptCost)
	}

	return d, cleanup, nil
}
