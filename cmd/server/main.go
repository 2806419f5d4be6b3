package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comnet/internal/config"
	"comnet/internal/db"
	"comnet/internal/router"
	"comnet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const feedCacheSize = 512

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "comnet",
		Short:         "COMNet voting and news ingestion service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(sourcesCmd())
	return root
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: $PORT or 8080)")
	return cmd
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch news channels once and turn new items into posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			svc := buildServices(conn, cfg)

			res, err := svc.Ingest.RunIngestion(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled news sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, src := range cfg.News.EnabledSources() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-24s %s\n", src.ID, src.Name, src.RSSURL)
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if len(cfg.News.Sources) == 0 {
		log.Warn().Str("file", cfg.SourcesFile).Msg("No news sources configured")
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.SeedNetwork(conn, cfg.DefaultNetworkID); err != nil {
		return nil, err
	}
	return conn, nil
}

func buildServices(conn *gorm.DB, cfg *config.Config) router.Services {
	settings := cfg.News.Settings
	fetcher := services.NewRSSFetcher(settings.FetchTimeout, settings.UserAgent, cfg.RSSHubInstance)

	cache, err := services.NewMemoryFeedCache(feedCacheSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}

	votes := services.NewVoteService(conn)
	return router.Services{
		Votes:    votes,
		Listing:  services.NewListingService(conn, votes),
		NewsFeed: services.NewNewsFeedService(&cfg.News, fetcher, cache, time.Now),
		Ingest:   services.NewNewsIngestService(conn, &cfg.News, fetcher, time.Now),
	}
}

// runServe starts the HTTP server and blocks until SIGINT or SIGTERM.
func runServe(cfg *config.Config) error {
	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(conn, cfg, buildServices(conn, cfg))

	logger := log.Logger.With().Str("service", "comnet-api").Logger()
	h := hlog.NewHandler(logger)(engine)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP Request")
	})(h)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Refresh and ingest wait on upstream feeds.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", addr).Msg("API server starting")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
		return httpServer.Close()
	}
	logger.Info().Msg("Server exiting")
	return nil
}
