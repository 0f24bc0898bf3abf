package meteo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/climatelab/weathervane/internal/config"
)

// --- helpers ---

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(config.MeteoConfig{
		GeocodingURL:   baseURL + "/v1/search",
		ForecastURL:    baseURL + "/v1/forecast",
		ArchiveURL:     baseURL + "/v1/archive",
		QuickTimeout:   5 * time.Second,
		ArchiveTimeout: 5 * time.Second,
	})
}

// --- Geocode tests ---

func TestGeocode_ValidResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("name") != "Lisbon" {
			t.Errorf("unexpected name: %s", q.Get("name"))
		}
		if q.Get("count") != "1" {
			t.Errorf("unexpected count: %s", q.Get("count"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"name":"Lisbon","latitude":38.7167,"longitude":-9.1333}]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	loc, err := c.Geocode(context.Background(), "Lisbon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Name != "Lisbon" {
		t.Errorf("unexpected name: %s", loc.Name)
	}
	if loc.Latitude != 38.7167 || loc.Longitude != -9.1333 {
		t.Errorf("unexpected coordinates: %f, %f", loc.Latitude, loc.Longitude)
	}
}

func TestGeocode_NoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.Geocode(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestGeocode_MissingResultsKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"generationtime_ms":0.5}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.Geocode(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

// --- HourlyForecast tests ---

func TestHourlyForecast_ParsesNulls(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("forecast_days") != "1" {
			t.Errorf("unexpected forecast_days: %s", q.Get("forecast_days"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hourly":{
			"time":["2026-08-30T00:00","2026-08-30T01:00"],
			"temperature_2m":[18.4,null],
			"apparent_temperature":[17.9,17.1],
			"relative_humidity_2m":[72,75],
			"precipitation_probability":[10,null],
			"wind_speed_10m":[12.5,13.0]}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	series, err := c.HourlyForecast(context.Background(), 38.7167, -9.1333, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(series.Time) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(series.Time))
	}
	if series.Temperature[0] == nil || *series.Temperature[0] != 18.4 {
		t.Errorf("unexpected first temperature: %v", series.Temperature[0])
	}
	if series.Temperature[1] != nil {
		t.Errorf("expected nil for null temperature, got %v", *series.Temperature[1])
	}
	if series.PrecipitationProbability[1] != nil {
		t.Errorf("expected nil for null precipitation probability")
	}
}

// --- DailyArchive tests ---

func TestDailyArchive_ValidResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/archive" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start_date") != "2025-08-30" {
			t.Errorf("unexpected start_date: %s", q.Get("start_date"))
		}
		if q.Get("end_date") != "2026-08-30" {
			t.Errorf("unexpected end_date: %s", q.Get("end_date"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"daily":{
			"time":["2025-08-30","2025-08-31"],
			"temperature_2m_mean":[21.0,22.5],
			"temperature_2m_max":[28.0,30.1],
			"temperature_2m_min":[15.2,16.0],
			"precipitation_sum":[0.0,1.2],
			"wind_speed_10m_max":[20.0,null]}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	start := time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	series, err := c.DailyArchive(context.Background(), 38.7167, -9.1333, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series.Time) != 2 {
		t.Fatalf("expected 2 days, got %d", len(series.Time))
	}
	if *series.TempMax[1] != 30.1 {
		t.Errorf("unexpected max temp: %v", *series.TempMax[1])
	}
	if series.WindMax[1] != nil {
		t.Errorf("expected nil wind max for null")
	}
}

// --- error classification tests ---

func TestClient_Non200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.Geocode(context.Background(), "Lisbon")
	if !errors.Is(err, ErrMeteoQueryError) {
		t.Fatalf("expected ErrMeteoQueryError, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing is listening anymore

	c := newTestClient(t, ts.URL)
	_, err := c.Geocode(context.Background(), "Lisbon")
	if !errors.Is(err, ErrMeteoUnreachable) {
		t.Fatalf("expected ErrMeteoUnreachable, got %v", err)
	}
}

func TestClient_ContextTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Geocode(ctx, "Lisbon")
	if !errors.Is(err, ErrMeteoTimeout) {
		t.Fatalf("expected ErrMeteoTimeout, got %v", err)
	}
}
