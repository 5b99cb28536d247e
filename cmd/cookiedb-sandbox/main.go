// Command cookiedb-sandbox serves the in-memory CookieDB mock over the wire
// protocol, with optional seeding, artificial latency and failure injection.
// It exists so applications built on the driver can be developed and demoed
// without a CookieDB deployment.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cookiedb/cookiedb-go/internal/config"
	"github.com/cookiedb/cookiedb-go/internal/devseed"
	"github.com/cookiedb/cookiedb-go/pkg/cookiedb/mock"
	"github.com/cookiedb/cookiedb-go/pkg/logger"
)

var (
	flagConfig     string
	flagAddr       string
	flagAdminToken string
	flagSeed       string
	flagLatency    time.Duration
	flagFailRate   float64
	flagFailCode   int
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cookiedb-sandbox",
	Short: "Run an in-memory CookieDB server for development",
	Long: `cookiedb-sandbox serves the CookieDB wire protocol from process memory.
Point a client at it with its base URL and the configured admin token; state
is discarded on exit. Latency and failure injection simulate an unreliable
deployment.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to yaml config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default :8888)")
	rootCmd.Flags().StringVar(&flagAdminToken, "admin-token", "", "admin bearer token (default: accept any token)")
	rootCmd.Flags().StringVar(&flagSeed, "seed", "", "path to JSON seed file")
	rootCmd.Flags().DurationVar(&flagLatency, "latency", 0, "artificial latency per request")
	rootCmd.Flags().Float64Var(&flagFailRate, "fail-rate", 0, "fraction of requests to fail (0..1)")
	rootCmd.Flags().IntVar(&flagFailCode, "fail-code", 0, "HTTP status for injected failures (default 503)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(flagVerbose)

	store := buildStore(cfg)
	if cfg.Seed != "" {
		seed, err := devseed.Load(cfg.Seed)
		if err != nil {
			return err
		}
		if err := store.Seed(seed); err != nil {
			return err
		}
		log.Infof("seeded mock from %s", cfg.Seed)
	}

	handler := store.Handler()
	handler = injectFailures(handler, cfg.Fail)
	handler = injectLatency(handler, cfg.Latency)
	handler = logRequests(handler, log)

	log.Infof("cookiedb sandbox listening on %s", cfg.Addr)
	if cfg.AdminToken == "" {
		log.Warn("no admin token configured; accepting any bearer token")
	}
	return http.ListenAndServe(cfg.Addr, handler)
}

func resolveConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagAdminToken != "" {
		cfg.AdminToken = flagAdminToken
	}
	if flagSeed != "" {
		cfg.Seed = flagSeed
	}
	if flagLatency > 0 {
		cfg.Latency = flagLatency
	}
	if flagFailRate > 0 {
		cfg.Fail.Rate = flagFailRate
	}
	if flagFailCode != 0 {
		cfg.Fail.Code = flagFailCode
	}
	if cfg.Fail.Code == 0 {
		cfg.Fail.Code = http.StatusServiceUnavailable
	}
	return cfg, cfg.Validate()
}

func buildStore(cfg *config.Config) *mock.Mock {
	if cfg.AdminToken != "" {
		return mock.New(mock.WithUser("admin", cfg.AdminToken, true))
	}
	return mock.New()
}

func injectLatency(next http.Handler, latency time.Duration) http.Handler {
	if latency <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(latency)
		next.ServeHTTP(w, r)
	})
}

func injectFailures(next http.Handler, fail config.FailConfig) http.Handler {
	if fail.Rate <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < fail.Rate {
			http.Error(w, fmt.Sprintf("injected failure (%d)", fail.Code), fail.Code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
