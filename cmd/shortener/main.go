package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gearzhan/shortURL/internal/clock"
	"github.com/gearzhan/shortURL/internal/config"
	"github.com/gearzhan/shortURL/internal/counter"
	"github.com/gearzhan/shortURL/internal/service"
	"github.com/gearzhan/shortURL/internal/shortcode"
	"github.com/gearzhan/shortURL/internal/storage"
	"github.com/gearzhan/shortURL/pkg/postgres"

	myhttp "github.com/gearzhan/shortURL/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shortener", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		Concise:  cfg.Env != config.EnvProd,
		LogLevel: slog.LevelInfo,
	})

	g, ctx := errgroup.WithContext(ctx)

	var (
		store       storage.Store
		redisClient *redis.Client
	)
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		redisClient, err = storage.NewRedisClient(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return redisClient.Close()
		})
		store = storage.NewRedisStore(redisClient)
	case config.BackendPostgres:
		db, err := postgres.New(cfg.Storage.Postgres.DSN())
		if err != nil {
			return err
		}
		if err := postgres.RunMigrations("file://migrations", cfg.Storage.Postgres.DSN()); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return db.Close()
		})
		store = storage.NewPostgresStore(db)
	default:
		store = storage.NewMemoryStore()
	}

	clk := clock.RealClock{}

	var cnt counter.Counter
	if cfg.Counter.Mode == config.CounterCell {
		if redisClient != nil {
			cnt = counter.NewRedisCounter(redisClient, clk)
		} else {
			cnt = counter.NewMemoryCounter(clk)
		}
	}

	registry := service.NewRegistry(store, shortcode.New(), cnt, clk)
	router := myhttp.NewRouter(logger, registry, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("backend", cfg.Storage.Backend),
			slog.String("counter", cfg.Counter.Mode),
		)

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
