package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/gastrack/relay/internal/core/api"
	"github.com/gastrack/relay/internal/core/config"
	"github.com/gastrack/relay/internal/core/db"
	"github.com/gastrack/relay/internal/core/server"
	"github.com/gastrack/relay/internal/engine"
	"github.com/gastrack/relay/internal/feed"
	"github.com/gastrack/relay/internal/logger"
	"github.com/gastrack/relay/internal/store"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rule engine and authoring API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP server host")
	serveCmd.Flags().Int("port", 0, "HTTP server port")
	serveCmd.Flags().String("nats-url", "", "NATS server URL for the change feed")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	err = database.Get(&migrationID, database.Rebind(
		"SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("schema not initialized - run 'relay migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := engine.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	eng, err := engine.New(engine.Deps{
		Rules:          store.NewSQLRuleStore(queries),
		Logs:           store.NewSQLLogStore(queries),
		Templates:      store.NewSQLTemplateStore(queries),
		Records:        store.NewSQLRecordStore(queries),
		Logger:         log,
		Metrics:        metrics,
		ChannelTimeout: cfg.ChannelTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	source, err := feed.NewNATSSource(feed.NATSSourceConfig{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.SubjectPrefix,
		Buffer:        cfg.FeedBuffer,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to connect change feed: %w", err)
	}
	defer source.Close()

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go eng.Run(dispatchCtx, source.Events())

	handler := api.NewHandler(eng, log)
	httpServer, err := server.NewHTTPServer(cfg, handler.Router(registry))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("relay starting", "version", Version, "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Info("shutting down")
		stopDispatch()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
		// Let in-flight invocations settle before the process exits.
		eng.Wait()
		return nil
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.ServerConfig) {
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.NATSURL, _ = cmd.Flags().GetString("nats-url")
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
}
