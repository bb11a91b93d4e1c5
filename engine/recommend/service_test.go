package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yangon-eats/menu-recommender/engine/catalog"
	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/engine/events"
	"github.com/yangon-eats/menu-recommender/engine/weather"
	"github.com/yangon-eats/menu-recommender/pkg/metrics"
)

func menu() []domain.MenuItem {
	img := "https://cdn.example/coffee.jpg"
	return []domain.MenuItem{
		{ID: 1, RecipeName: "Mango Salad", Ingredients: "mango, lettuce, lime, chili", CategoryID: 7, Price: 4.5},
		{ID: 2, RecipeName: "Hot Coffee", Ingredients: "coffee beans, water, sugar", CategoryID: 5, Price: 2.0, ImgSrc: &img},
		{ID: 3, RecipeName: "Iced Coffee", Ingredients: "coffee beans, ice, milk, sugar", CategoryID: 6, Price: 2.5},
		{ID: 4, RecipeName: "Beef Curry", Ingredients: "beef, onion, garlic, chili, rice", CategoryID: 3, Price: 8.0},
		{ID: 5, RecipeName: "Chicken Curry", Ingredients: "chicken, onion, garlic, chili, rice", CategoryID: 3, Price: 7.5},
		{ID: 6, RecipeName: "Mango Sticky Rice", Ingredients: "mango, sticky rice, coconut milk, sugar", CategoryID: 4, Price: 3.5},
		{ID: 7, RecipeName: "Ginger Tea", Ingredients: "ginger, water, honey", CategoryID: 5, Price: 1.5},
		{ID: 8, RecipeName: "Pancakes", Ingredients: "flour, egg, milk, sugar", CategoryID: 1, Price: 3.0},
	}
}

func mustIndex(t *testing.T, items []domain.MenuItem) *catalog.Index {
	t.Helper()
	ix, err := catalog.Build(items)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWeather struct {
	mu       sync.Mutex
	reading  weather.Reading
	err      error
	calls    int
	lat, lon float64
}

func (f *fakeWeather) CurrentCondition(_ context.Context, lat, lon float64) (weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lat, f.lon = lat, lon
	return f.reading, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.RecommendationServed
	err    error
}

func (f *fakePublisher) PublishServed(_ context.Context, ev events.RecommendationServed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func rain() *fakeWeather {
	return &fakeWeather{reading: weather.Reading{Condition: "Rain", Temperature: 26.4}}
}

func similarNames(rec *domain.Recommendation) []string {
	out := make([]string, len(rec.ClickedItem))
	for i, it := range rec.ClickedItem {
		out[i] = it.RecipeName
	}
	return out
}

func weatherNames(rec *domain.Recommendation) []string {
	out := make([]string, len(rec.WeatherItem))
	for i, it := range rec.WeatherItem {
		out[i] = it.RecipeName
	}
	return out
}

func TestRecommend_RainScenario(t *testing.T) {
	wx := rain()
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Iced Coffee"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if rec.Weather != "Rain" || rec.Temperature != 26.4 {
		t.Fatalf("unexpected weather fields: %q %v", rec.Weather, rec.Temperature)
	}

	sims := similarNames(rec)
	if len(sims) != 5 {
		t.Fatalf("expected 5 similar items, got %v", sims)
	}
	if sims[0] != "Hot Coffee" {
		t.Fatalf("expected Hot Coffee first, got %v", sims)
	}
	for _, n := range sims {
		if n == "Iced Coffee" {
			t.Fatal("clicked item must not recommend itself")
		}
	}

	want := []string{"Hot Coffee", "Beef Curry", "Chicken Curry", "Ginger Tea"}
	if got := weatherNames(rec); !reflect.DeepEqual(got, want) {
		t.Fatalf("weather items: got %v want %v", got, want)
	}
	for _, it := range rec.WeatherItem {
		if it.ImgSrc == "" || it.CategoryName == nil {
			t.Fatalf("weather item missing image or category: %+v", it)
		}
		if it.RecipeName == "Mango Salad" {
			t.Fatal("Mango Salad is not a rainy-day item")
		}
	}
	if rec.WeatherItem[1].ImgSrc != domain.PlaceholderImage {
		t.Fatalf("expected placeholder image, got %q", rec.WeatherItem[1].ImgSrc)
	}

	if wx.lat != 16.8409 || wx.lon != 96.1735 {
		t.Fatalf("expected default coordinates, got %v,%v", wx.lat, wx.lon)
	}
}

func TestRecommend_RequestOverrides(t *testing.T) {
	wx := rain()
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	lat, lon := 13.75, 100.5
	rec, err := svc.Recommend(context.Background(), domain.Request{
		Item: "Beef Curry", Lat: &lat, Lon: &lon, KSimilar: 2, KWeather: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.ClickedItem) != 2 || len(rec.WeatherItem) != 1 {
		t.Fatalf("k overrides ignored: %d similar, %d weather", len(rec.ClickedItem), len(rec.WeatherItem))
	}
	if rec.ClickedItem[0].RecipeName != "Chicken Curry" {
		t.Fatalf("expected Chicken Curry first, got %v", similarNames(rec))
	}
	if wx.lat != lat || wx.lon != lon {
		t.Fatalf("coordinates not forwarded: %v,%v", wx.lat, wx.lon)
	}
}

func TestRecommend_ItemNotFound(t *testing.T) {
	wx := rain()
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Pizza"})
	if rec != nil {
		t.Fatal("expected no result")
	}
	var nf *domain.ItemNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Pizza" {
		t.Fatalf("expected ItemNotFoundError for Pizza, got %v", err)
	}
	if wx.calls != 0 {
		t.Fatal("weather must not be queried for an unknown item")
	}
}

func TestRecommend_InvalidRequest(t *testing.T) {
	wx := rain()
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	bad := 91.0
	tests := []domain.Request{
		{},
		{Item: "Hot Coffee", Lat: &bad},
		{Item: "Hot Coffee", KSimilar: domain.MaxK + 1},
	}
	for _, req := range tests {
		if _, err := svc.Recommend(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", req, err)
		}
	}
	if wx.calls != 0 {
		t.Fatal("invalid requests must not reach the weather provider")
	}
}

func TestRecommend_WeatherFailurePropagates(t *testing.T) {
	wx := &fakeWeather{err: domain.NewWeatherUnavailableError("status", errors.New("503"))}
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Hot Coffee"})
	if rec != nil || !errors.Is(err, domain.ErrWeatherUnavailable) {
		t.Fatalf("expected weather failure, got %v, %v", rec, err)
	}
}

func TestRecommend_UntypedWeatherErrorIsWrapped(t *testing.T) {
	wx := &fakeWeather{err: errors.New("socket closed")}
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	_, err := svc.Recommend(context.Background(), domain.Request{Item: "Hot Coffee"})
	var wu *domain.WeatherUnavailableError
	if !errors.As(err, &wu) {
		t.Fatalf("expected WeatherUnavailableError, got %v", err)
	}
}

func TestRecommend_WeatherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	opts := weather.DefaultOptions()
	opts.BaseURL = srv.URL
	opts.HTTPClient = srv.Client()
	opts.Timeout = 50 * time.Millisecond
	client := weather.New(opts, quietLogger(), nil)

	svc := New(mustIndex(t, menu()), client, nil, DefaultOptions(), quietLogger(), nil)
	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Hot Coffee"})
	if rec != nil {
		t.Fatalf("timeout must not yield a partial result: %+v", rec)
	}
	if !errors.Is(err, domain.ErrWeatherUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected weather timeout, got %v", err)
	}
}

func TestRecommend_Idempotent(t *testing.T) {
	svc := New(mustIndex(t, menu()), rain(), nil, DefaultOptions(), quietLogger(), nil)
	req := domain.Request{Item: "Mango Salad"}

	a, err := svc.Recommend(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Recommend(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("results differ:\n%+v\n%+v", a, b)
	}
}

func TestRecommend_UnknownConditionYieldsNoWeatherItems(t *testing.T) {
	wx := &fakeWeather{reading: weather.Reading{Condition: "Tornado", Temperature: 20}}
	svc := New(mustIndex(t, menu()), wx, nil, DefaultOptions(), quietLogger(), nil)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Hot Coffee"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.WeatherItem == nil || len(rec.WeatherItem) != 0 {
		t.Fatalf("expected empty non-nil weather items, got %#v", rec.WeatherItem)
	}
	if rec.Weather != "Tornado" {
		t.Fatalf("raw label must pass through, got %q", rec.Weather)
	}
}

func TestRecommend_PublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New()
	svc := New(mustIndex(t, menu()), rain(), pub, DefaultOptions(), quietLogger(), m)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Ginger Tea"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Item != "Ginger Tea" || ev.Condition != "Rain" || !reflect.DeepEqual(ev.Similar, similarNames(rec)) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 published event, got %v", got)
	}
	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok recommendation, got %v", got)
	}
}

func TestRecommend_PublishFailureDoesNotFailCall(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	m := metrics.New()
	svc := New(mustIndex(t, menu()), rain(), pub, DefaultOptions(), quietLogger(), m)

	rec, err := svc.Recommend(context.Background(), domain.Request{Item: "Ginger Tea"})
	if err != nil || rec == nil {
		t.Fatalf("publish failure leaked into result: %v", err)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed event, got %v", got)
	}
}

func TestRecommend_CountsOutcomes(t *testing.T) {
	m := metrics.New()
	svc := New(mustIndex(t, menu()), rain(), nil, DefaultOptions(), quietLogger(), m)

	_, _ = svc.Recommend(context.Background(), domain.Request{Item: "Pizza"})
	_, _ = svc.Recommend(context.Background(), domain.Request{})

	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("not_found = %v", got)
	}
	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("invalid = %v", got)
	}
}

func TestRecommend_FollowsHolderSwap(t *testing.T) {
	h, err := catalog.NewHolder(context.Background(), catalog.StaticSource{Label: "menu", Items: menu()}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	svc := New(h, rain(), nil, DefaultOptions(), quietLogger(), nil)

	if _, err := svc.Recommend(context.Background(), domain.Request{Item: "Pancakes"}); err != nil {
		t.Fatal(err)
	}
	h.Swap(mustIndex(t, menu()[:4]))
	if _, err := svc.Recommend(context.Background(), domain.Request{Item: "Pancakes"}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected swapped catalog to drop Pancakes, got %v", err)
	}
}

func TestRecommend_NoCatalog(t *testing.T) {
	svc := New(&catalog.Holder{}, rain(), nil, DefaultOptions(), quietLogger(), nil)
	if _, err := svc.Recommend(context.Background(), domain.Request{Item: "Hot Coffee"}); err == nil {
		t.Fatal("expected error without a catalog")
	}
}

func TestRecommend_Concurrent(t *testing.T) {
	svc := New(mustIndex(t, menu()), rain(), nil, DefaultOptions(), quietLogger(), nil)
	want, err := svc.Recommend(context.Background(), domain.Request{Item: "Beef Curry"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Recommend(context.Background(), domain.Request{Item: "Beef Curry"})
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	svc := New(mustIndex(t, menu()), rain(), nil, Options{}, nil, nil)
	opts := svc.Options()
	if opts.KSimilar != 5 || opts.KWeather != 8 || opts.PublishTimeout <= 0 {
		t.Fatalf("defaults not applied: %+v", opts)
	}
}

func TestDescribe(t *testing.T) {
	rec := &domain.Recommendation{Weather: "Rain", Temperature: 26.44, ClickedItem: make([]domain.SimilarItem, 3)}
	if got := Describe(rec); got != "Rain, 26.4°C: 3 similar, 0 for the weather" {
		t.Fatalf("unexpected summary %q", got)
	}
}
