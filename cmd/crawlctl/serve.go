package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crawlctl/crawlctl/internal/ape"
	"github.com/crawlctl/crawlctl/internal/config"
	"github.com/crawlctl/crawlctl/internal/crawler"
	"github.com/crawlctl/crawlctl/internal/estimator"
	"github.com/crawlctl/crawlctl/internal/httpapi"
	"github.com/crawlctl/crawlctl/internal/jid"
	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/kv"
	"github.com/crawlctl/crawlctl/internal/ledger"
	"github.com/crawlctl/crawlctl/internal/livestatus"
	"github.com/crawlctl/crawlctl/internal/logging"
	"github.com/crawlctl/crawlctl/internal/store"
	"github.com/crawlctl/crawlctl/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crawlctl control plane: HTTP API, intake consumer, and dispatch loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe constructs every component once per process and wires them
// into a single jid.Service. It blocks until SIGINT/SIGTERM, then drains
// the HTTP server and stops the background loops.
func runServe(ctx context.Context) error {
	cfg := config.Load()
	log := logging.Get()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	djs, err := store.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer djs.Close()
	if err := djs.Migrate(ctx); err != nil {
		return err
	}

	redisClient := kv.New(cfg.RedisAddr)
	lsc := livestatus.New(redisClient)
	rl := ledger.New(redisClient, int64(cfg.UserLimit.Window().Seconds()))
	est := estimator.New(redisClient)

	capacity := job.WorkerCapacity{
		TotalInstances:        cfg.Worker.TotalInstances.Value,
		MaxThreadsPerInstance: cfg.Worker.MaxThreadsPerInstance.Value,
	}
	limits := ape.Limits{
		MaxThreadsPerWindow: cfg.UserLimit.MaxThreadsPerWindow.Value,
		MaxJobsPerWindow:    cfg.UserLimit.MaxJobsPerWindow.Value,
	}
	engine := ape.New(rl, capacity, limits)

	producer := transport.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	consumer := transport.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaConsumerGroup)
	defer consumer.Close()

	fetcher := crawler.NewHTTPFetcher()

	svc := jid.New(djs, lsc, rl, engine, est, producer, fetcher, capacity)

	go func() {
		if err := consumer.Run(ctx, svc.Intake); err != nil {
			log.Error("intake consumer stopped with error", "error", err)
		}
	}()

	go svc.RunDispatchLoop(ctx, cfg.DispatchTick)

	// Periodic utilization snapshot, mostly for operators tailing the logs.
	go func() {
		ticker := time.NewTicker(cfg.StatsCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := rl.CurrentResourceStatus(ctx, capacity)
				if err != nil {
					log.Warn("failed to snapshot cluster resource status", "error", err)
					continue
				}
				log.Info("cluster resource status",
					"usedThreads", status.UsedThreads,
					"totalThreads", status.TotalThreads,
					"usedInstances", status.UsedInstances,
					"utilization", status.UtilizationRate,
					"pending", engine.Len())
			}
		}
	}()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(svc),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", "error", err)
		}
	}()

	log.Info("crawlctl control plane starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
