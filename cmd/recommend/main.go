// Command recommend prints similar and weather-suited menu items for one
// dish. It prompts for the dish when -item is not given.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/engine/recommend"
	"github.com/yangon-eats/menu-recommender/engine/weather"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return v
	}
	return d
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags.
type options struct {
	catalogPath string
	item        string
	lat, lon    float64
	kSimilar    int
	kWeather    int
	apiKey      string
	weatherURL  string
	timeout     time.Duration
	asJSON      bool
	verbose     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.catalogPath, "catalog", envOr("CATALOG_PATH", "menu_items.csv"), "menu catalog CSV")
	fs.StringVar(&o.item, "item", "", "menu item to recommend for (prompted when empty)")
	fs.Float64Var(&o.lat, "lat", envFloat("DEFAULT_LAT", 16.8409), "latitude for the weather lookup")
	fs.Float64Var(&o.lon, "lon", envFloat("DEFAULT_LON", 96.1735), "longitude for the weather lookup")
	fs.IntVar(&o.kSimilar, "k-similar", 5, "number of similar items")
	fs.IntVar(&o.kWeather, "k-weather", 8, "number of weather-based items")
	fs.StringVar(&o.apiKey, "api-key", os.Getenv("OPENWEATHER_API_KEY"), "OpenWeatherMap API key")
	fs.StringVar(&o.weatherURL, "weather-url", envOr("OPENWEATHER_URL", weather.DefaultBaseURL), "weather endpoint")
	fs.DurationVar(&o.timeout, "timeout", 4*time.Second, "weather lookup timeout")
	fs.BoolVar(&o.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&o.verbose, "v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.apiKey == "" {
		return o, errors.New("an OpenWeatherMap API key is required (-api-key or OPENWEATHER_API_KEY)")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ix, err := catalog.Load(ctx, catalog.CSVFile{Path: o.catalogPath})
	if err != nil {
		return err
	}

	item := strings.TrimSpace(o.item)
	if item == "" {
		if item, err = prompt(stdin, stdout); err != nil {
			return err
		}
	}

	wopts := weather.DefaultOptions()
	wopts.APIKey = o.apiKey
	wopts.BaseURL = o.weatherURL
	wopts.Timeout = o.timeout
	svc := recommend.New(ix, weather.New(wopts, logger, nil), nil, recommend.DefaultOptions(), logger, nil)

	lat, lon := o.lat, o.lon
	rec, err := svc.Recommend(ctx, domain.Request{
		Item:     item,
		Lat:      &lat,
		Lon:      &lon,
		KSimilar: o.kSimilar,
		KWeather: o.kWeather,
	})
	if err != nil {
		return err
	}
	logger.Info("recommendation ready", "item", item, "summary", recommend.Describe(rec))

	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	printRecommendation(stdout, rec)
	return nil
}

func prompt(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "Enter the menu item you want recommendations for: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read item: %w", err)
	}
	item := strings.TrimSpace(line)
	if item == "" {
		return "", errors.New("no menu item given")
	}
	return item, nil
}

func printRecommendation(w io.Writer, rec *domain.Recommendation) {
	fmt.Fprintf(w, "\nWeather: %s - %.1f°C\n", rec.Weather, rec.Temperature)

	fmt.Fprintln(w, "\nItem-based recommendation:")
	if len(rec.ClickedItem) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, it := range rec.ClickedItem {
		fmt.Fprintf(w, "  %d. %s ($%.2f)\n", i+1, it.RecipeName, it.Price)
	}

	fmt.Fprintln(w, "\nWeather-based recommendation:")
	if len(rec.WeatherItem) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, it := range rec.WeatherItem {
		category := "uncategorized"
		if it.CategoryName != nil {
			category = *it.CategoryName
		}
		fmt.Fprintf(w, "  %d. %s [%s] ($%.2f)\n", i+1, it.RecipeName, category, it.Price)
	}
}
