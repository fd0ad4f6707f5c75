package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/logger"
	"github.com/serbisyo-bataan/matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("providers", "", "path to the provider export JSON file served by default")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, level, err := logger.NewLeveled(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if path, _ := cmd.Flags().GetString("providers"); path != "" {
		config.ProvidersFile = path
	}

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the matching engine", zap.Error(err))
	}

	// Requests may carry their own providers, so serving without a default set is fine.
	if e.directory != nil || config.ProvidersFile != "" {
		providers, err := loadProviders(ctx, e, config)
		if err != nil {
			logger.Fatal("loading providers", zap.Error(err))
		}
		e.source.Replace(providers)
		logger.Info("loaded providers", zap.Int("count", providers.Len()))
	}
	if e.directory != nil && config.Directory.RefreshInterval > 0 {
		go refreshProviders(ctx, e, config, logger)
	}

	watchConfig(ctx, e, level, logger)

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.NewRouter(server.NewHandler(e.orchestrator, e.source, logger))
	srv := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      config.AI.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
}

// refreshProviders keeps the default provider set in sync with the directory.
// A failed refresh keeps the previous snapshot.
func refreshProviders(ctx context.Context, e *engine, config *Config, logger *zap.Logger) {
	ticker := time.NewTicker(config.Directory.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			providers, err := loadProviders(ctx, e, config)
			if err != nil {
				logger.Warn("provider refresh failed", zap.Error(err))
				continue
			}
			e.source.Replace(providers)
			logger.Debug("providers refreshed", zap.Int("count", providers.Len()))
		}
	}
}

// watchConfig swaps the AI generator when the config file changes, so rotated
// credentials apply without a restart. The debug switch is honoured too.
func watchConfig(ctx context.Context, e *engine, level zap.AtomicLevel, log *zap.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(event fsnotify.Event) {
		logger.SetDebug(level, viper.GetBool("debug"))

		config, err := getConfig()
		if err != nil {
			log.Warn("ignoring config change", zap.String("file", event.Name), zap.Error(err))
			return
		}

		generator, err := newGenerator(ctx, config.AI, log)
		if err != nil {
			log.Warn("ai generator not replaced", zap.String("file", event.Name), zap.Error(err))
			return
		}

		e.handle.Store(generator)
		log.Info("ai generator reloaded",
			zap.String("file", event.Name),
			zap.Bool("ai_enabled", generator != nil),
		)
	})
	viper.WatchConfig()
}
