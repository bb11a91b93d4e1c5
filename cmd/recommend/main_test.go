package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/yangon-eats/menu-recommender/engine/domain"
)

const menuCSV = `id,recipe_name,ingredients,category_id,price,img_src
1,Hot Coffee,"coffee, milk, sugar",5,2.50,
2,Iced Coffee,"coffee, ice, milk",6,3.00,
3,Ginger Tea,"ginger, honey, water",5,2.00,
4,Beef Curry,"beef, potato, curry paste",3,9.50,
5,Mango Sticky Rice,"mango, rice, coconut milk",4,4.00,
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.csv")
	if err := os.WriteFile(path, []byte(menuCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeWeather(t *testing.T, condition string, temp float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "Yangon",
			"weather": []map[string]any{{"main": condition, "description": strings.ToLower(condition)}},
			"main":    map[string]any{"temp": temp},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseArgs(t *testing.T, srv *httptest.Server) []string {
	return []string{"-catalog", writeCatalog(t), "-api-key", "k", "-weather-url", srv.URL}
}

func TestRun_ItemFlag(t *testing.T) {
	srv := fakeWeather(t, "Rain", 26.4)
	var out, errOut bytes.Buffer

	args := append(baseArgs(t, srv), "-item", "Iced Coffee")
	if err := run(context.Background(), args, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("run: %v (stderr %s)", err, errOut.String())
	}

	got := out.String()
	for _, want := range []string{
		"Weather: Rain - 26.4°C",
		"Item-based recommendation:",
		"1. Hot Coffee ($2.50)",
		"Weather-based recommendation:",
		"Hot Coffee [Hot Drinks]",
		"Beef Curry [Dinner Dishes]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Enter the menu item") {
		t.Error("should not prompt when -item is set")
	}
}

func TestRun_PromptsForItem(t *testing.T) {
	srv := fakeWeather(t, "Clear", 31)
	var out bytes.Buffer

	err := run(context.Background(), baseArgs(t, srv), strings.NewReader("Hot Coffee\n"), &out, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "Enter the menu item you want recommendations for: ") {
		t.Fatalf("expected prompt first, got %q", got)
	}
	if !strings.Contains(got, "Iced Coffee [Cold Drinks]") {
		t.Fatalf("expected cold drinks on a clear day:\n%s", got)
	}
}

func TestRun_JSON(t *testing.T) {
	srv := fakeWeather(t, "Rain", 24)
	var out bytes.Buffer

	args := append(baseArgs(t, srv), "-item", "Hot Coffee", "-json", "-k-similar", "2")
	if err := run(context.Background(), args, nil, &out, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	var rec domain.Recommendation
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if rec.Weather != "Rain" || rec.Temperature != 24 {
		t.Fatalf("unexpected weather: %+v", rec)
	}
	if len(rec.ClickedItem) != 2 {
		t.Fatalf("expected 2 similar items, got %d", len(rec.ClickedItem))
	}
	for _, it := range rec.ClickedItem {
		if it.RecipeName == "Hot Coffee" {
			t.Fatal("item must not recommend itself")
		}
	}
}

func TestRun_UnknownItem(t *testing.T) {
	srv := fakeWeather(t, "Rain", 24)
	args := append(baseArgs(t, srv), "-item", "Pizza")
	err := run(context.Background(), args, nil, io.Discard, io.Discard)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestRun_EmptyPrompt(t *testing.T) {
	srv := fakeWeather(t, "Rain", 24)
	err := run(context.Background(), baseArgs(t, srv), strings.NewReader("\n"), io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "no menu item") {
		t.Fatalf("expected empty-item error, got %v", err)
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	err := run(context.Background(), []string{"-item", "Tea"}, nil, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestRun_MissingCatalog(t *testing.T) {
	srv := fakeWeather(t, "Rain", 24)
	args := []string{"-catalog", filepath.Join(t.TempDir(), "nope.csv"), "-api-key", "k", "-weather-url", srv.URL, "-item", "Tea"}
	err := run(context.Background(), args, nil, io.Discard, io.Discard)
	if !errors.Is(err, domain.ErrCatalogLoad) {
		t.Fatalf("expected ErrCatalogLoad, got %v", err)
	}
}

func TestRun_WeatherDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	args := append(baseArgs(t, srv), "-item", "Hot Coffee")
	err := run(context.Background(), args, nil, io.Discard, io.Discard)
	if !errors.Is(err, domain.ErrWeatherUnavailable) {
		t.Fatalf("expected ErrWeatherUnavailable, got %v", err)
	}
}

func TestPrintRecommendation_Empty(t *testing.T) {
	var out bytes.Buffer
	printRecommendation(&out, &domain.Recommendation{Weather: "Tornado"})
	if strings.Count(out.String(), "(none)") != 2 {
		t.Fatalf("expected both sections empty:\n%s", out.String())
	}
}
