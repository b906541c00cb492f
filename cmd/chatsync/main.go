package main

import (
	"chat-sync/contract"
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/internal"
	"chat-sync/moderation"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// writableStore is a store that can also be seeded with whole subtrees.
type writableStore interface {
	contract.IStore
	Set(ctx context.Context, path domain.Path, value any) error
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatsync terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until the console quits or a signal is received.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB), always holds the registry and the path index
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if config.DebugPort > 0 {
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		database.StartDebugServer(db, config.DebugPort, "/inspect", entryMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Hierarchical store
	store, closeStore, err := openStore(ctx, config, db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer closeStore()

	registry := repositories.NewBadgerRegistry(db, logger)
	if config.SeedFilepath != "" {
		if err = seed(ctx, config.SeedFilepath, config.RequestsCollection, store, registry); err != nil {
			return exitRuntime, fmt.Errorf("seed failed: %w", err)
		}
	}
	cachedRegistry, err := repositories.NewCachedRegistry(registry, config.RegistryCacheSize, logger)
	if err != nil {
		return exitConfig, err
	}
	pathIndex := repositories.NewBadgerPathIndex(db, logger)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger)

	// 4. Outbound rules
	censored, err := moderation.NewEmbeddedLoader().LoadAll("censored")
	if err != nil {
		return exitRuntime, fmt.Errorf("censored dictionaries: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, err
	}
	logger.Debug("Moderation ready", "words", len(censored.Words), "languages", censored.Languages)
	gate := services.NewOutboundGate(config.MaxOutbound, config.MaxContentLength, logger).WithModerator(moderator)

	// 5. Engine
	self := domain.Participant{ID: config.SelfID, DisplayName: config.SelfName}
	bus := runtime.NewBus(logger)
	explorer := discovery.NewExplorer(nil, config.MaxContainers, logger)
	generator := discovery.NewGenerator(store, pathIndex, explorer, logger)
	schema := services.DefaultRegistrySchema()
	schema.Collection = config.RequestsCollection
	lister := services.NewConversationListBuilder(store, cachedRegistry, explorer, self, schema, logger)
	chat := services.NewChatService(self, store, generator,
		runtime.NewListenerManager(store, logger),
		gate,
		services.NewSendRouter(store, generator, pathIndex, logger),
		messageIndex, bus, logger)
	chat.Start()
	defer chat.Close()

	// 6. Sinks & background workers
	terminal := sink.NewTerminalSink(os.Stdout, config.Colours)
	batches := make(chan []domain.Message, config.IndexChannelSize)
	indexSink := sink.NewIndexSink(batches, config.MaxIndexedBatch, config.IndexBufferTimeout, logger)
	bus.Register("terminal", terminal)
	bus.Register("index", indexSink)

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewConversationPoller(lister, bus, config.RefreshInterval, logger),
		workers.NewIndexer(messageIndex, batches, logger),
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{{Name: "index-batches", Channel: batches}},
			config.MetricInterval, config.LowCapacity),
	)
	supervised := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervised)
	}()

	// 7. Interactive console
	errChan := make(chan error, 1)
	go func() {
		errChan <- newConsole(chat, bus, terminal, os.Stdin, os.Stdout).Run(ctx)
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errChan:
		if err != nil {
			code = exitRuntime
		}
	}

	// 9. Final Cleanup
	logger.Info("Shutting down gracefully...")
	indexSink.Flush()
	stop()
	sup.Stop()
	<-supervised
	logger.Info("Program stopped cleanly")
	return code, err
}

func openStore(ctx context.Context, config internal.Config, db *badger.DB, logger *slog.Logger) (writableStore, func(), error) {
	switch config.StoreBackend {
	case internal.BackendRedis:
		store, err := repositories.NewRedisStore(ctx, config.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			logger.Info("Closing Redis...")
			_ = store.Close()
		}, nil
	case internal.BackendMemory:
		return repositories.NewMemoryStore(logger), func() {}, nil
	default:
		return repositories.NewBadgerStore(db, logger), func() {}, nil
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// entryMapper renders store nodes, registry documents and path index entries in the inspector.
func entryMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	entry, err := repositories.DecodeEntry(key, val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = entry.Kind
	if detail, err := json.Marshal(entry.Value); err == nil {
		row.Detail = string(detail)
	}
	return row
}
