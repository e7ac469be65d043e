// marketgate is a market-data gateway with graceful degradation.
//
// Main CLI entrypoint using the cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"marketgate/api"
	"marketgate/internal/config"
	"marketgate/internal/credentials"
	"marketgate/internal/gateway"
	"marketgate/internal/infra"
	"marketgate/internal/newsfeed"
	"marketgate/internal/tiingo"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketgate",
	Short: "marketgate is a market-data gateway with graceful degradation",
	Long: `marketgate accepts a symbol and a data kind (quote, intraday, eod,
news, documents, actions, fundamentals, statements, overview, valuation)
and returns a normalized JSON envelope, sourcing from Tiingo when a token
is configured and degrading to bundled samples or synthetic data otherwise.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Tokens are commonly kept in a local .env; absence is fine.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(credsCmd)
}

func setupLogging(lc config.LoggingConfig) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newService wires the data-sourcing chain from config and the resolved
// credential. Cache and rate limiter live inside the client for the
// process lifetime.
func newService() *gateway.Service {
	cred := credentials.NewResolver().Resolve()

	var upstream gateway.Upstream
	if cred.Found() {
		retry := infra.DefaultRetry
		if cfg.Upstream.RetryAttempts > 0 {
			retry.MaxAttempts = cfg.Upstream.RetryAttempts
		}
		if cfg.Upstream.TimeoutSec > 0 {
			retry.AttemptTimeout = time.Duration(cfg.Upstream.TimeoutSec) * time.Second
		}
		upstream = tiingo.NewClient(tiingo.Options{
			BaseURL:    cfg.Upstream.BaseURL,
			Token:      cred.Token,
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
			Retry:      retry,
			MaxTokens:  cfg.Upstream.RateMaxRequests,
			Window:     time.Duration(cfg.Upstream.RateWindowMillis) * time.Millisecond,
		})
	} else {
		slog.Warn("no provider credential found; serving sample and synthetic data only")
	}

	var feed gateway.NewsFeed
	if cfg.News.FeedsEnabled {
		feed = newsfeed.NewSource()
	}

	return gateway.NewService(gateway.Config{
		Credential: cred,
		Upstream:   upstream,
		Feed:       feed,
	})
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("marketgate %s (%s)\n", version, commit)
	},
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := api.NewServer(api.Options{
			Service:     newService(),
			CORSOrigins: cfg.API.CORSOrigins,
			Logger:      slog.Default(),
		})
		return srv.ListenAndServe(cfg.API.Addr())
	},
}

// --- fetch ---

var fetchCmd = &cobra.Command{
	Use:   "fetch SYMBOL",
	Short: "Fetch one envelope and print it as JSON",
	Long:  "Invokes the request handler directly and prints the envelope, for verification without a running server.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")
		interval, _ := cmd.Flags().GetString("interval")

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		env, err := newService().Handle(ctx, gateway.Request{
			Symbol:   args[0],
			Kind:     kind,
			Limit:    limit,
			Interval: interval,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("kind", "", "data kind (default eod)")
	fetchCmd.Flags().Int("limit", 0, "max series/list length")
	fetchCmd.Flags().String("interval", "5min", "intraday bar interval")
}

// --- creds ---

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Show the resolved provider credential (redacted)",
	Run: func(cmd *cobra.Command, args []string) {
		cred := credentials.NewResolver().Resolve()
		if !cred.Found() {
			fmt.Println("no credential found")
			return
		}
		fmt.Printf("key:     %s\n", cred.Key)
		fmt.Printf("token:   %s\n", cred.Preview())
		fmt.Printf("source:  %s\n", cred.Source)
	},
}
