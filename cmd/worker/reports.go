package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/config"
	"github.com/jmehdipour/leadsite/internal/db"
	"github.com/jmehdipour/leadsite/internal/kafka"
	"github.com/jmehdipour/leadsite/internal/logger"
	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/repository"
	"github.com/jmehdipour/leadsite/internal/worker"
)

var metricsAddr string

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Consume lead events from Kafka into ClickHouse",
	RunE:  runReports,
}

func init() {
	reportsCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address for /metrics (empty disables)")
}

func runReports(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	log := logger.Named("worker")
	defer func() { _ = logger.Log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewReportsKafka(consumer, repository.NewEventsRepository(chDB), log)

	// tune knobs
	if cfg.Kafka.BatchSize > 0 {
		w.BatchSize = cfg.Kafka.BatchSize
	}
	if cfg.Kafka.BatchWait > 0 {
		w.BatchWait = cfg.Kafka.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server exited", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	log.Info("reports worker started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}
