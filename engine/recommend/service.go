// Package recommend combines content similarity with the current weather to
// answer "what else should this diner order?". A call either returns a full
// Recommendation or a typed error; it never degrades into a partial result.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/engine/events"
	"github.com/yangon-eats/menu-recommender/engine/weather"
	"github.com/yangon-eats/menu-recommender/pkg/fn"
	"github.com/yangon-eats/menu-recommender/pkg/metrics"
)

// CatalogSource hands out the live catalog. *catalog.Holder and
// *catalog.Index both satisfy it.
type CatalogSource interface {
	Current() *catalog.Index
}

// WeatherProvider reads the current condition at a coordinate.
type WeatherProvider interface {
	CurrentCondition(ctx context.Context, lat, lon float64) (weather.Reading, error)
}

// EventPublisher announces served recommendations.
type EventPublisher interface {
	PublishServed(ctx context.Context, ev events.RecommendationServed) error
}

// Options configures defaults applied to requests that leave fields unset.
type Options struct {
	DefaultLat     float64
	DefaultLon     float64
	KSimilar       int
	KWeather       int
	PublishTimeout time.Duration
}

// DefaultOptions centres on Yangon with 5 similar and 8 weather items.
func DefaultOptions() Options {
	return Options{
		DefaultLat:     16.8409,
		DefaultLon:     96.1735,
		KSimilar:       5,
		KWeather:       8,
		PublishTimeout: 2 * time.Second,
	}
}

// Service is the recommendation entry point. It holds no per-request state.
type Service struct {
	catalog CatalogSource
	weather WeatherProvider
	events  EventPublisher
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates a Service. pub and m may be nil.
func New(cat CatalogSource, wx WeatherProvider, pub EventPublisher, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.KSimilar <= 0 {
		opts.KSimilar = def.KSimilar
	}
	if opts.KWeather <= 0 {
		opts.KWeather = def.KWeather
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = def.PublishTimeout
	}
	return &Service{
		catalog: cat,
		weather: wx,
		events:  pub,
		opts:    opts,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("github.com/yangon-eats/menu-recommender/engine/recommend"),
		now:     time.Now,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Recommend returns items similar to req.Item plus items suited to the
// weather at the requested (or default) coordinate.
func (s *Service) Recommend(ctx context.Context, req domain.Request) (*domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "recommend.Recommend", trace.WithAttributes(
		attribute.String("menu.item", req.Item),
	))
	defer span.End()

	rec, err := s.recommend(ctx, req)
	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.Recommendation(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Warn("recommend failed", "item", req.Item, "outcome", outcome, "err", err)
		return nil, err
	}

	s.metrics.Recommendation("ok")
	span.SetAttributes(
		attribute.String("weather.condition", rec.Weather),
		attribute.Int("recommend.similar", len(rec.ClickedItem)),
		attribute.Int("recommend.weather", len(rec.WeatherItem)),
	)
	s.logger.Info("recommend served",
		"item", req.Item,
		"condition", rec.Weather,
		"similar", len(rec.ClickedItem),
		"weather_items", len(rec.WeatherItem),
	)
	s.publish(ctx, req.Item, rec)
	return rec, nil
}

func (s *Service) recommend(ctx context.Context, req domain.Request) (*domain.Recommendation, error) {
	if err := domain.ValidateRequest(req); err != nil {
		return nil, err
	}

	// One snapshot per call so a concurrent reload cannot mix two catalogs.
	ix := s.catalog.Current()
	if ix == nil {
		return nil, errors.New("recommend: catalog not loaded")
	}

	similar, err := ix.SimilarItems(req.Item, s.kSimilar(req))
	if err != nil {
		return nil, err
	}

	lat, lon := s.coordinates(req)
	reading, err := s.weather.CurrentCondition(ctx, lat, lon)
	if err != nil {
		var wu *domain.WeatherUnavailableError
		if errors.As(err, &wu) {
			return nil, err
		}
		return nil, domain.NewWeatherUnavailableError("error", err)
	}

	preferred := weather.PreferredCategories(reading.Condition)
	suited := ix.ItemsByCategories(preferred, s.kWeather(req))

	return &domain.Recommendation{
		ClickedItem: fn.Map(similar, domain.MenuItem.AsSimilar),
		WeatherItem: fn.Map(suited, domain.MenuItem.AsWeather),
		Weather:     reading.Condition,
		Temperature: reading.Temperature,
	}, nil
}

func (s *Service) coordinates(req domain.Request) (float64, float64) {
	lat, lon := s.opts.DefaultLat, s.opts.DefaultLon
	if req.Lat != nil {
		lat = *req.Lat
	}
	if req.Lon != nil {
		lon = *req.Lon
	}
	return lat, lon
}

func (s *Service) kSimilar(req domain.Request) int {
	if req.KSimilar > 0 {
		return req.KSimilar
	}
	return s.opts.KSimilar
}

func (s *Service) kWeather(req domain.Request) int {
	if req.KWeather > 0 {
		return req.KWeather
	}
	return s.opts.KWeather
}

// publish never affects the result; failures are logged and counted.
func (s *Service) publish(ctx context.Context, item string, rec *domain.Recommendation) {
	if s.events == nil {
		return
	}
	ev := events.NewRecommendationServed(item, rec, s.now())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()

	err := s.events.PublishServed(ctx, ev)
	s.metrics.Event(err)
	if err != nil {
		s.logger.Warn("publish recommendation event failed", "item", item, "event_id", ev.ID, "err", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrWeatherUnavailable):
		return "weather_unavailable"
	default:
		return "error"
	}
}

// Describe is a short human summary of rec for CLI output and logs.
func Describe(rec *domain.Recommendation) string {
	return fmt.Sprintf("%s, %.1f°C: %d similar, %d for the weather",
		rec.Weather, rec.Temperature, len(rec.ClickedItem), len(rec.WeatherItem))
}
