package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contenox/chatstate/apiframework"
	libbus "github.com/contenox/chatstate/libbus"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/libroutine"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messagestore"
	"github.com/contenox/chatstate/serverapi"
	"github.com/contenox/chatstate/traceservice"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

var nodeInstanceID = "NODE-Instance-UNSET-dev"

func initDatabase(ctx context.Context, cfg *serverapi.Config) (libdb.DBManager, error) {
	var dbInstance libdb.DBManager
	err := libroutine.NewRoutine(10, time.Minute).ExecuteWithRetry(ctx, time.Second, 3, func(ctx context.Context) error {
		var err error
		if cfg.DatabaseURL != "" {
			dbInstance, err = libdb.NewPostgresDBManager(ctx, cfg.DatabaseURL, messagestore.Schema)
			return err
		}
		path := cfg.SQLitePath
		if path == "" {
			path = "chatstate.db"
		}
		dbInstance, err = libdb.NewSQLiteDBManager(ctx, path, messagestore.Schema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return dbInstance, nil
}

func initPubSub(ctx context.Context, cfg *serverapi.Config) (libbus.Messenger, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	return libbus.NewPubSub(ctx, &libbus.Config{
		NATSURL:      cfg.NATSURL,
		NATSPassword: cfg.NATSPassword,
		NATSUser:     cfg.NATSUser,
	})
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func main() {
	_ = godotenv.Load(".env")
	nodeInstanceID = uuid.NewString()[0:8]

	config := &serverapi.Config{}
	if err := serverapi.LoadConfig(config); err != nil {
		log.Fatalf("%s: failed to load configuration: %v", nodeInstanceID, err)
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	setupLogging(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("initialize the database", "node", nodeInstanceID)
	dbInstance, err := initDatabase(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing database failed: %v", nodeInstanceID, err)
	}
	defer dbInstance.Close()

	ps, err := initPubSub(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing PubSub failed: %v", nodeInstanceID, err)
	}
	if ps != nil {
		defer ps.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promTracker, err := libtracker.NewPrometheusTracker(reg, "chatstate")
	if err != nil {
		log.Fatalf("%s initializing metrics failed: %v", nodeInstanceID, err)
	}
	tracker := libtracker.ChainedTracker{
		libtracker.NewLogActivityTracker(slog.Default()),
		promTracker,
	}

	internalMux := http.NewServeMux()
	cleanup, err := serverapi.New(ctx, internalMux, nodeInstanceID, config, dbInstance, ps, tracker, reg)
	if err != nil {
		log.Fatalf("%s initializing API handler failed: %v", nodeInstanceID, err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Printf("%s cleanup failed: %v", nodeInstanceID, err)
		}
	}()

	var apiHandler http.Handler = internalMux
	apiHandler = apiframework.RequestIDMiddleware(apiHandler)
	apiHandler = apiframework.TracingMiddleware(apiHandler)
	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)

	srv := &http.Server{Addr: config.Addr + ":" + config.Port, Handler: mux}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "node", nodeInstanceID, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if ps != nil {
		g.Go(func() error {
			// Resubscribes after bus failures until shutdown.
			libroutine.NewRoutine(3, 10*time.Second).Loop(gctx, 5*time.Second, nil, func(ctx context.Context) error {
				return traceservice.Consume(ctx, ps, config.TraceSubject, func(rec traceservice.Record) {
					slog.Info("message trace",
						"messageId", rec.MessageID,
						"event", rec.Event.Type,
						"requestId", rec.RequestID,
						"at", rec.At,
					)
				})
			}, func(err error) {
				slog.Warn("trace consumer stopped", "error", err)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("%s server failed: %v", nodeInstanceID, err)
	}
}
