package serverapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/internal/messageapi"
	libbus "github.com/contenox/chatstate/libbus"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/messagestore"
	"github.com/contenox/chatstate/querycache"
	"github.com/contenox/chatstate/topicservice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New registers the chat routes on mux. When pubsub is set, every
// successful mutation broadcasts the affected cache keys as stale.
func New(
	ctx context.Context,
	mux *http.ServeMux,
	nodeInstanceID string,
	config *Config,
	dbInstance libdb.DBManager,
	pubsub libbus.Messenger,
	tracker libtracker.ActivityTracker,
	gatherer prometheus.Gatherer,
) (func() error, error) {
	cleanup := func() error { return nil }
	if dbInstance == nil {
		return cleanup, fmt.Errorf("serverapi: database is required")
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Error(w, r, apiframework.ErrNotFound, apiframework.ListOperation)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		// OK
	})
	version := apiframework.GetVersion()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Encode(w, r, http.StatusOK, apiframework.AboutServer{Version: version, NodeInstanceID: nodeInstanceID})
	})
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	messageService := messageservice.New(dbInstance)
	topicService := topicservice.New(dbInstance)
	if pubsub != nil {
		notifier := querycache.NewCoordinator(querycache.NewBusInvalidator(pubsub, config.StaleSubject), nil, nil)
		messageService = withStaleMessages(messageService, notifier, storedScopes(dbInstance))
		topicService = withStaleTopics(topicService, notifier)
	}
	messageService = messageservice.WithActivityTracker(messageService, tracker)
	topicService = topicservice.WithActivityTracker(topicService, tracker)

	messageapi.AddMessageRoutes(mux, messageService)
	messageapi.AddTopicRoutes(mux, topicService)

	return cleanup, nil
}

type Config struct {
	DatabaseURL  string `json:"database_url"`
	SQLitePath   string `json:"sqlite_path"`
	Port         string `json:"port"`
	Addr         string `json:"addr"`
	NATSURL      string `json:"nats_url"`
	NATSUser     string `json:"nats_user"`
	NATSPassword string `json:"nats_password"`
	TraceSubject string `json:"trace_subject"`
	StaleSubject string `json:"stale_subject"`
	LogLevel     string `json:"log_level"`
}

func LoadConfig[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config pointer is nil")
	}
	config := map[string]string{}
	for _, kvPair := range os.Environ() {
		ar := strings.SplitN(kvPair, "=", 2)
		if len(ar) < 2 {
			continue
		}
		key := strings.ToLower(ar[0])
		value := ar[1]
		config[key] = value
	}

	b, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal env vars: %w", err)
	}
	err = json.Unmarshal(b, cfg)
	if err != nil {
		return fmt.Errorf("failed to unmarshal into config struct: %w", err)
	}

	return nil
}

func storedScopes(db libdb.DBManager) scopeLister {
	return func(ctx context.Context) ([]chattypes.Context, error) {
		rows, err := messagestore.New(db.WithoutTransaction()).ListScopes(ctx)
		if err != nil {
			return nil, err
		}
		scopes := make([]chattypes.Context, 0, len(rows))
		for _, row := range rows {
			scopes = append(scopes, chattypes.Context{SessionID: row.SessionID, TopicID: row.TopicID})
		}
		return scopes, nil
	}
}
