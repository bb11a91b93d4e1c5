// Package main implements the menu recommender API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/events"
	"github.com/yangon-eats/menu-recommender/engine/recommend"
	"github.com/yangon-eats/menu-recommender/engine/weather"
	"github.com/yangon-eats/menu-recommender/pkg/fn"
	"github.com/yangon-eats/menu-recommender/pkg/metrics"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	CatalogPath string
	CORSOrigin  string

	WeatherAPIKey      string
	WeatherURL         string
	WeatherTimeout     time.Duration
	WeatherMaxAttempts int
	WeatherRatePerSec  float64

	DefaultLat float64
	DefaultLon float64
	KSimilar   int
	KWeather   int

	NATSURL     string
	NATSSubject string
}

func loadConfig() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	p := envParser{}
	cfg := Config{
		Port:        envOr("PORT", "8080"),
		CatalogPath: envOr("CATALOG_PATH", "menu_items.csv"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),

		WeatherAPIKey:      os.Getenv("OPENWEATHER_API_KEY"),
		WeatherURL:         envOr("OPENWEATHER_URL", weather.DefaultBaseURL),
		WeatherTimeout:     p.durationOr("WEATHER_TIMEOUT", 4*time.Second),
		WeatherMaxAttempts: p.intOr("WEATHER_MAX_ATTEMPTS", 1),
		WeatherRatePerSec:  p.floatOr("WEATHER_RATE_PER_SEC", 10),

		DefaultLat: p.floatOr("DEFAULT_LAT", 16.8409),
		DefaultLon: p.floatOr("DEFAULT_LON", 96.1735),
		KSimilar:   p.intOr("K_SIMILAR", 5),
		KWeather:   p.intOr("K_WEATHER", 8),

		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: envOr("NATS_SUBJECT", events.DefaultSubject),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	if cfg.WeatherAPIKey == "" {
		return Config{}, errors.New("config: OPENWEATHER_API_KEY is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParser keeps the first parse failure so loadConfig can report it once.
type envParser struct{ err error }

func (p *envParser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: %s=%q: %w", key, raw, err)
	}
}

func (p *envParser) intOr(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *envParser) floatOr(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *envParser) durationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func weatherOptions(cfg Config) weather.Options {
	opts := weather.DefaultOptions()
	opts.BaseURL = cfg.WeatherURL
	opts.APIKey = cfg.WeatherAPIKey
	opts.Timeout = cfg.WeatherTimeout
	opts.RatePerSec = cfg.WeatherRatePerSec
	opts.Retry = fn.NoRetry
	if cfg.WeatherMaxAttempts > 1 {
		opts.Retry = fn.DefaultRetry
		opts.Retry.MaxAttempts = cfg.WeatherMaxAttempts
	}
	return opts
}

func serviceOptions(cfg Config) recommend.Options {
	opts := recommend.DefaultOptions()
	opts.DefaultLat = cfg.DefaultLat
	opts.DefaultLon = cfg.DefaultLon
	opts.KSimilar = cfg.KSimilar
	opts.KWeather = cfg.KWeather
	return opts
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// --- Catalog ---
	holder, err := catalog.NewHolder(ctx, catalog.CSVFile{Path: cfg.CatalogPath}, logger)
	m.CatalogLoaded(itemCount(holder), err)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// --- Weather ---
	wx := weather.New(weatherOptions(cfg), logger, m)

	// --- Events (optional) ---
	var pub recommend.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("menu-recommender-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		pub = events.NewNATSPublisher(nc, cfg.NATSSubject)
		logger.Info("publishing recommendation events", "subject", cfg.NATSSubject)
	}

	svc := recommend.New(holder, wx, pub, serviceOptions(cfg), logger, m)

	// --- HTTP server ---
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(&server{
			recommender: svc,
			weather:     wx,
			catalog:     holder,
			metrics:     m,
			logger:      logger,
			defaultLat:  cfg.DefaultLat,
			defaultLon:  cfg.DefaultLon,
		}, cfg.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "items", holder.Current().Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func itemCount(h *catalog.Holder) int {
	if h == nil || h.Current() == nil {
		return 0
	}
	return h.Current().Len()
}
