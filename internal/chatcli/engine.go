// engine.go wires the conversation manager for one CLI invocation.
package chatcli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/contenox/chatstate/chatservice"
	"github.com/contenox/chatstate/libbus"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/libkvstore"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messagemap"
	"github.com/contenox/chatstate/messagesdk"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/messagestore"
	"github.com/contenox/chatstate/querycache"
	"github.com/contenox/chatstate/topicservice"
	"github.com/contenox/chatstate/traceservice"
	"github.com/spf13/cobra"
)

const (
	defaultSessionID = "default"
	kvKeyPrefix      = "chatstate:"
)

type engine struct {
	manager  *chatservice.Manager
	coord    *querycache.Coordinator
	messages messageservice.Service
	topics   topicservice.Service
	dir      string
}

// openEngine resolves config and flags, builds the engine and restores the
// active conversation. The returned cleanup must always be called.
func openEngine(cmd *cobra.Command) (context.Context, *engine, func(), error) {
	cfg, configPath, err := loadLocalConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err = mergeFlags(cfg, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, nil, nil, err
	}
	dir := resolveConfigDir(configPath)

	ctx, cancel := context.WithTimeout(libtracker.WithNewRequestID(context.Background()), cfg.Timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	eng, closeEngine, err := buildEngine(ctx, cfg, dir, chatservice.SystemClipboard{})
	if err != nil {
		stop()
		cancel()
		return nil, nil, nil, err
	}
	cleanup := func() {
		closeEngine()
		stop()
		cancel()
	}

	flags := cmd.Root().PersistentFlags()
	st, err := loadState(dir)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to load state: %w", err)
	}
	if flags.Changed("session") {
		st.SessionID, _ = flags.GetString("session")
		st.TopicID, st.ThreadID = "", ""
	}
	if flags.Changed("topic") {
		st.TopicID, _ = flags.GetString("topic")
		st.ThreadID = ""
	}
	eng.restore(st)
	return ctx, eng, cleanup, nil
}

// buildEngine opens the backend, the cache and the optional bus. On error
// everything opened so far is already closed.
func buildEngine(ctx context.Context, cfg localConfig, dir string, clip chatservice.Clipboard) (*engine, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Error("Error during cleanup", "error", err)
			}
		}
	}

	var tracker libtracker.ActivityTracker = libtracker.NoopTracker{}
	var tracers traceservice.Fanout
	if cfg.Trace {
		tracker = libtracker.NewLogActivityTracker(slog.Default())
		tracers = append(tracers, traceservice.NewLogTracer(slog.Default()))
	}

	var messages messageservice.Service
	var topics topicservice.Service
	if cfg.Server != "" {
		client := messagesdk.NewClient(messagesdk.Config{BaseURL: cfg.Server}, http.DefaultClient)
		messages, topics = client.MessageService, client.TopicService
	} else {
		db, err := openLocalDB(ctx, cfg, dir)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		messages, topics = messageservice.New(db), topicservice.New(db)
	}
	messages = messageservice.WithActivityTracker(messages, tracker)
	topics = topicservice.WithActivityTracker(topics, tracker)

	var cache querycache.Cache
	if cfg.ValkeyAddr != "" {
		kv, err := libkvstore.NewManager(libkvstore.Config{KVAddr: cfg.ValkeyAddr, KVPassword: cfg.ValkeyPassword}, 5*time.Second)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, kv.Close)
		cache = querycache.NewKVCache(kv, kvKeyPrefix, cfg.CacheTTL)
	} else {
		cache = querycache.NewMemoryCache()
	}
	invalidators := querycache.Chain{cache}

	if cfg.NATSURL != "" {
		bus, err := libbus.NewPubSub(ctx, &libbus.Config{
			NATSURL:      cfg.NATSURL,
			NATSUser:     cfg.NATSUser,
			NATSPassword: cfg.NATSPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, bus.Close)
		invalidators = append(invalidators, querycache.NewBusInvalidator(bus, ""))
		tracers = append(tracers, traceservice.NewBusTracer(bus, ""))
	}

	var tracer traceservice.Tracer
	if len(tracers) > 0 {
		tracer = tracers
	}
	coord := querycache.NewCoordinator(invalidators, cache, messages)
	manager := chatservice.NewManager(messagemap.New(), messages, topics, coord, tracer, clip, tracker)

	return &engine{
		manager:  manager,
		coord:    coord,
		messages: messages,
		topics:   topics,
		dir:      dir,
	}, cleanup, nil
}

func openLocalDB(ctx context.Context, cfg localConfig, dir string) (libdb.DBManager, error) {
	dbPath := cfg.DB
	if dbPath == "" {
		dbPath = filepath.Join(dir, "local.db")
	}
	dbPathAbs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPathAbs), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory: %w", err)
	}
	db, err := libdb.NewSQLiteDBManager(ctx, dbPathAbs, messagestore.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (e *engine) restore(st activeState) {
	if st.SessionID == "" {
		st.SessionID = defaultSessionID
	}
	e.manager.SwitchSession(st.SessionID)
	e.manager.SwitchTopic(st.TopicID)
	e.manager.SwitchThread(st.ThreadID)
}

// persist writes the active conversation back to the state file.
func (e *engine) persist() error {
	active := e.manager.Active()
	return saveState(e.dir, activeState{
		SessionID: active.SessionID,
		TopicID:   active.TopicID,
		ThreadID:  e.manager.ActiveThreadID(),
	})
}

// hydrate loads the active scope so cascades see the whole conversation.
func (e *engine) hydrate(ctx context.Context) error {
	_, err := e.manager.FetchMessages(ctx, nil)
	return err
}
