package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"newsbrief/internal/beat"
	"newsbrief/internal/config"
	"newsbrief/internal/logging"
	"newsbrief/internal/queue"
	"newsbrief/internal/server"
	"newsbrief/internal/worker"
)

var (
	logger *zap.Logger
	cfg    config.Config

	configPath  string
	redisAddr   string
	badgerPath  string
	storeDriver string
	sqlitePath  string
	runNow      bool
)

var rootCmd = &cobra.Command{
	Use:   "newsbrief",
	Short: "newsbrief - discovers news articles, extracts and summarizes them",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			os.Setenv("NEWSBRIEF_CONFIG", configPath)
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("redis") {
			cfg.Store.RedisAddr = redisAddr
			cfg.Queue.RedisAddr = redisAddr
		}
		if flags.Changed("badger") {
			cfg.Store.BadgerPath = badgerPath
		}
		if flags.Changed("store") {
			cfg.Store.Driver = storeDriver
		}
		if flags.Changed("sqlite") {
			cfg.Store.SQLitePath = sqlitePath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging.Level)
		return err
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the worker pool, the cron triggers and the trigger HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Setup Signal Handling (Ctrl+C)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		// Setup Manual 'q' input handling
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if scanner.Text() == "q" {
					fmt.Println(" 'q' pressed. Stopping...")
					cancel()
					return
				}
			}
		}()

		go func() {
			select {
			case <-sigChan:
				logger.Info("Shutting down...")
				cancel()
			case <-ctx.Done():
			}
		}()

		// Initialize Store (FULL MODE)
		st, err := openStore(cfg, fullMode)
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer st.Close()

		q, err := openQueue(cfg)
		if err != nil {
			return fmt.Errorf("failed to init queue: %w", err)
		}
		defer q.Close()

		comps, err := buildComponents(cfg, st, q, logger)
		if err != nil {
			return err
		}

		noBeat, _ := cmd.Flags().GetBool("no-beat")
		if !noBeat {
			b, err := beat.New(q, cfg.Schedule, logger)
			if err != nil {
				return err
			}
			b.Start()
			defer b.Stop()
		}

		noHTTP, _ := cmd.Flags().GetBool("no-http")
		var web *server.Server
		if !noHTTP {
			web = server.NewServer(q, st, comps.orchestrator, logger)
			go func() {
				if err := web.Start(cfg.Server.Addr); err != nil {
					logger.Error("Web server stopped", zap.Error(err))
					cancel()
				}
			}()
		}

		pool := worker.NewPool(q, comps.orchestrator, comps.newEngine, cfg.Worker, logger)
		poolDone := make(chan struct{})
		go func() {
			pool.Start(ctx)
			close(poolDone)
		}()

		logger.Info("Worker running.")
		fmt.Println("Press 'q' + Enter or Ctrl+C to stop.")

		// Block until shutdown
		<-ctx.Done()

		if web != nil {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := web.Stop(stopCtx); err != nil {
				logger.Warn("Web server shutdown", zap.Error(err))
			}
		}
		<-poolDone
		logger.Info("Goodbye!")
		return nil
	},
}

// triggerCmd enqueues task, or runs it in this process with --now.
func triggerCmd(use, short, task string, args cobra.PositionalArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var taskArgs map[string]string
			if task == queue.TaskProcessURL {
				taskArgs = map[string]string{queue.ArgURL: args[0]}
			}

			q, err := openQueue(cfg)
			if err != nil {
				return fmt.Errorf("failed to init queue: %w", err)
			}
			defer q.Close()

			if !runNow {
				h, err := q.Enqueue(ctx, task, taskArgs)
				if err != nil {
					return fmt.Errorf("failed to queue %s: %w", task, err)
				}
				logger.Info("Task queued", zap.String("task", task), zap.String("job_id", h.ID.String()))
				fmt.Printf("Task queued successfully. Task ID: %s\n", h.ID)
				return nil
			}
			return runInline(ctx, q, task, taskArgs)
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "Run in this process instead of queueing (needs exclusive store access)")
	return cmd
}

func runInline(ctx context.Context, q *queue.RedisQueue, task string, args map[string]string) error {
	st, err := openStore(cfg, fullMode)
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	defer st.Close()

	comps, err := buildComponents(cfg, st, q, logger)
	if err != nil {
		return err
	}
	orch := comps.orchestrator

	var result interface{}
	switch task {
	case queue.TaskDiscoverSites:
		result = orch.DiscoverAll(ctx)
	case queue.TaskProcessURL:
		result = orch.ProcessOne(ctx, args[queue.ArgURL], comps.newEngine())
	case queue.TaskRetryFailed:
		if result, err = orch.RetryFailed(ctx, comps.newEngine()); err != nil {
			return err
		}
	case queue.TaskCleanupFailed:
		n, err := orch.Cleanup(ctx)
		if err != nil {
			return err
		}
		result = map[string]int{"deleted": n}
	}
	return printJSON(result)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about processed articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Initialize Store (CLIENT MODE)
		st, err := openStore(cfg, clientMode)
		if err != nil {
			return fmt.Errorf("failed to init store: %w", err)
		}
		defer st.Close()

		comps, err := buildComponents(cfg, st, nil, logger)
		if err != nil {
			return err
		}
		stats, err := comps.orchestrator.Stats(cmd.Context())
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return printJSON(stats)
		}
		printStats(stats)
		return nil
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Address of Redis server")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", "./badger-data", "Path to BadgerDB data directory")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", config.DriverHybrid, "Record store: hybrid or sqlite")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "./newsbrief.db", "Path to the SQLite database")

	workerCmd.Flags().Bool("no-beat", false, "Do not schedule periodic tasks")
	workerCmd.Flags().Bool("no-http", false, "Do not start the trigger HTTP server")
	statsCmd.Flags().Bool("json", false, "Print statistics as JSON")

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(triggerCmd("discover", "Discover articles on every configured site", queue.TaskDiscoverSites, cobra.NoArgs))
	rootCmd.AddCommand(triggerCmd("process [url]", "Process a single article URL", queue.TaskProcessURL, cobra.ExactArgs(1)))
	rootCmd.AddCommand(triggerCmd("retry", "Retry a batch of failed articles", queue.TaskRetryFailed, cobra.NoArgs))
	rootCmd.AddCommand(triggerCmd("cleanup", "Delete old failed articles", queue.TaskCleanupFailed, cobra.NoArgs))
	rootCmd.AddCommand(statsCmd)

	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
