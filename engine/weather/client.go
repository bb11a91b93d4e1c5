// Package weather reads the current conditions at a coordinate from the
// OpenWeatherMap API and maps the condition label onto preferred menu
// categories.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/pkg/fn"
	"github.com/yangon-eats/menu-recommender/pkg/metrics"
)

// DefaultBaseURL is the OpenWeatherMap current-weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const maxBodyBytes = 1 << 20

var (
	errMalformed = errors.New("malformed response")
	errStatus    = errors.New("unexpected status")
)

// Reading is the part of an upstream response the engine uses.
type Reading struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description,omitempty"`
	Place       string  `json:"place,omitempty"`
}

// Options configures the client.
type Options struct {
	BaseURL string
	APIKey  string
	Units   string

	// Timeout bounds one CurrentCondition call, retries included.
	Timeout time.Duration
	Retry   fn.RetryOpts

	RatePerSec float64
	Burst      int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// HTTPClient overrides the default otelhttp-instrumented client.
	HTTPClient *http.Client
}

// DefaultOptions returns production defaults: one attempt, 4s timeout.
func DefaultOptions() Options {
	return Options{
		BaseURL:         DefaultBaseURL,
		Units:           "metric",
		Timeout:         4 * time.Second,
		Retry:           fn.NoRetry,
		RatePerSec:      10,
		Burst:           5,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client is safe for concurrent use.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Reading]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Client. Zero-valued options fall back to DefaultOptions.
func New(opts Options, logger *slog.Logger, m *metrics.Metrics) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Units == "" {
		opts.Units = def.Units
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = def.RatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = def.BreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = def.BreakerTimeout
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = retryable
	}
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[Reading](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("weather breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		opts:    opts,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		breaker: breaker,
		logger:  logger,
		metrics: m,
	}
}

// CurrentCondition fetches the condition label and temperature at lat/lon.
// Any failure, including the timeout, is a *domain.WeatherUnavailableError.
func (c *Client) CurrentCondition(ctx context.Context, lat, lon float64) (Reading, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	reading, err := fn.Retry(ctx, c.opts.Retry, func(ctx context.Context) (Reading, error) {
		return c.breaker.Execute(func() (Reading, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return Reading{}, err
			}
			return c.fetch(ctx, lat, lon)
		})
	})
	if err != nil {
		reason := classify(err)
		c.metrics.WeatherCall(reason, start)
		c.logger.Warn("weather lookup failed", "lat", lat, "lon", lon, "reason", reason, "err", err)
		return Reading{}, domain.NewWeatherUnavailableError(reason, err)
	}

	c.metrics.WeatherCall("ok", start)
	c.logger.Debug("weather lookup", "lat", lat, "lon", lon, "condition", reading.Condition, "temp", reading.Temperature)
	return reading, nil
}

// PreferredCategories maps a condition label to its ranked menu categories.
func PreferredCategories(condition string) []string {
	return domain.PreferredCategories(condition)
}

type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Name string `json:"name"`
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (Reading, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return Reading{}, fmt.Errorf("weather: base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.opts.APIKey)
	q.Set("units", c.opts.Units)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("weather: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return Reading{}, fmt.Errorf("weather: %w %d", errStatus, resp.StatusCode)
	}

	var payload owmResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return Reading{}, fmt.Errorf("weather: %w: %v", errMalformed, err)
	}
	return payload.reading()
}

func (p owmResponse) reading() (Reading, error) {
	if len(p.Weather) == 0 {
		return Reading{}, fmt.Errorf("weather: %w: missing weather", errMalformed)
	}
	if p.Weather[0].Main == "" {
		return Reading{}, fmt.Errorf("weather: %w: missing weather[0].main", errMalformed)
	}
	if p.Main == nil || p.Main.Temp == nil {
		return Reading{}, fmt.Errorf("weather: %w: missing main.temp", errMalformed)
	}
	return Reading{
		Condition:   p.Weather[0].Main,
		Temperature: *p.Main.Temp,
		Description: p.Weather[0].Description,
		Place:       p.Name,
	}, nil
}

// retryable skips errors another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, errMalformed) &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests)
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, errMalformed):
		return "malformed"
	case errors.Is(err, errStatus):
		return "status"
	default:
		return "error"
	}
}
