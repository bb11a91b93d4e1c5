package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/engine/weather"
	"github.com/yangon-eats/menu-recommender/pkg/metrics"
	"github.com/yangon-eats/menu-recommender/pkg/mid"
)

type recommender interface {
	Recommend(ctx context.Context, req domain.Request) (*domain.Recommendation, error)
}

type weatherReader interface {
	CurrentCondition(ctx context.Context, lat, lon float64) (weather.Reading, error)
}

type catalogReloader interface {
	Current() *catalog.Index
	Reload(ctx context.Context) (*catalog.Index, error)
}

type server struct {
	recommender recommender
	weather     weatherReader
	catalog     catalogReloader
	metrics     *metrics.Metrics
	logger      *slog.Logger
	defaultLat  float64
	defaultLon  float64
}

func newRouter(s *server, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/recommendations/{item}", s.handleRecommend)
	mux.HandleFunc("GET /api/weather", s.handleWeather)
	mux.HandleFunc("POST /api/admin/catalog/reload", s.handleReload)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mid.Chain(mux,
		mid.Recover(s.logger),
		mid.RequestID(),
		mid.Logger(s.logger),
		mid.CORS(corsOrigin),
		mid.OTel("menu-recommender-api"),
		mid.Metrics(s.metrics),
	)
}

// HealthResponse is the JSON body for GET /api/health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Items    int       `json:"items"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ix := s.catalog.Current()
	if ix == nil {
		mid.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "catalog not loaded"})
		return
	}
	mid.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Items:    ix.Len(),
		Source:   ix.Source(),
		LoadedAt: ix.BuiltAt(),
	})
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.Request{Item: r.PathValue("item")}

	var err error
	if req.Lat, err = optFloat(q.Get("lat"), "lat"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Lon, err = optFloat(q.Get("lon"), "lon"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.KSimilar, err = optInt(q.Get("k_similar"), "k_similar"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.KWeather, err = optInt(q.Get("k_weather"), "k_weather"); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.recommender.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mid.WriteJSON(w, http.StatusOK, rec)
}

// WeatherResponse is the JSON body for GET /api/weather.
type WeatherResponse struct {
	weather.Reading
	PreferredCategories []string `json:"preferred_categories"`
}

func (s *server) handleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := optFloat(q.Get("lat"), "lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lon, err := optFloat(q.Get("lon"), "lon")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Reuse request validation for the coordinate bounds.
	if err := domain.ValidateRequest(domain.Request{Item: "-", Lat: lat, Lon: lon}); err != nil {
		s.writeError(w, r, err)
		return
	}

	la, lo := s.defaultLat, s.defaultLon
	if lat != nil {
		la = *lat
	}
	if lon != nil {
		lo = *lon
	}
	reading, err := s.weather.CurrentCondition(r.Context(), la, lo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mid.WriteJSON(w, http.StatusOK, WeatherResponse{
		Reading:             reading,
		PreferredCategories: weather.PreferredCategories(reading.Condition),
	})
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	ix, err := s.catalog.Reload(r.Context())
	if err != nil {
		s.metrics.CatalogLoaded(0, err)
		s.writeError(w, r, err)
		return
	}
	s.metrics.CatalogLoaded(ix.Len(), nil)
	mid.WriteJSON(w, http.StatusOK, map[string]any{"items": ix.Len(), "source": ix.Source()})
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", mid.RequestIDFrom(r.Context()), "err", err)
		msg = "internal server error"
	}
	mid.WriteJSON(w, status, map[string]string{"error": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWeatherUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func optFloat(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.NewValidationError(field, raw, domain.ErrInvalidRequest)
	}
	return &v, nil
}

func optInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(field, raw, domain.ErrInvalidRequest)
	}
	return v, nil
}
