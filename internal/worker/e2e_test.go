package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/internal/metrics"
	"github.com/climatelab/weathervane/internal/store"
	"github.com/climatelab/weathervane/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

func setupJobsDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("weathervane_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pgContainer.Terminate(ctx)) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations(connStr, testMigrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// cannedMeteoServer serves a fixed Open-Meteo API: a geocode hit for
// "Testville", a 4-sample hourly forecast, and daily archives for whichever
// date range is requested.
func cannedMeteoServer(t *testing.T, geocodeHit bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !geocodeHit {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.Write([]byte(`{"results":[{"name":"Testville","latitude":48.1,"longitude":11.5}]}`))
	})

	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hourly":{
			"time":["2026-08-30T00:00","2026-08-30T01:00","2026-08-30T02:00","2026-08-30T03:00"],
			"temperature_2m":[17.0,16.5,null,16.0],
			"apparent_temperature":[16.0,15.5,15.2,15.0],
			"relative_humidity_2m":[70,72,74,76],
			"precipitation_probability":[0,5,10,15],
			"wind_speed_10m":[10,11,12,13]}}`))
	})

	mux.HandleFunc("/v1/archive", func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse("2006-01-02", r.URL.Query().Get("start_date"))
		require.NoError(t, err)
		end, err := time.Parse("2006-01-02", r.URL.Query().Get("end_date"))
		require.NoError(t, err)

		// One sample per year keeps the payload small; the climate request
		// spans decades, the historical request spans one year.
		daily := struct {
			Time             []string  `json:"time"`
			TempMean         []float64 `json:"temperature_2m_mean"`
			TempMax          []float64 `json:"temperature_2m_max"`
			TempMin          []float64 `json:"temperature_2m_min"`
			PrecipitationSum []float64 `json:"precipitation_sum"`
			WindMax          []float64 `json:"wind_speed_10m_max"`
		}{}
		for year := start.Year(); year <= end.Year(); year++ {
			daily.Time = append(daily.Time, fmt.Sprintf("%d-07-15", year))
			daily.TempMean = append(daily.TempMean, 14.0+0.02*float64(year-start.Year()))
			daily.TempMax = append(daily.TempMax, 28.0)
			daily.TempMin = append(daily.TempMin, 12.0)
			daily.PrecipitationSum = append(daily.PrecipitationSum, 1.5)
			daily.WindMax = append(daily.WindMax, 22.0)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"daily": daily})
	})

	return httptest.NewServer(mux)
}

func e2ePoller(pool *pgxpool.Pool, meteoURL string) (*Poller, store.Store) {
	s := store.NewPostgresStore(pool)
	client := meteo.NewHTTPClient(config.MeteoConfig{
		GeocodingURL:   meteoURL + "/v1/search",
		ForecastURL:    meteoURL + "/v1/forecast",
		ArchiveURL:     meteoURL + "/v1/archive",
		QuickTimeout:   5 * time.Second,
		ArchiveTimeout: 5 * time.Second,
	})
	pipeline := NewPipeline(client, config.AnalysisConfig{
		HeatwaveMaxC:      30.0,
		TropicalNightMinC: 20.0,
		HistoricalDays:    365,
		ClimateYears:      50,
	})
	m := metrics.NewCollector("weathervane", prometheus.NewRegistry())
	p := NewPoller(s, pipeline, config.WorkerConfig{
		IdleInterval: time.Second,
		ErrorBackoff: time.Second,
	}, m)
	return p, s
}

func TestEndToEnd_CompletesJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupJobsDB(t)
	ts := cannedMeteoServer(t, true)
	defer ts.Close()

	p, s := e2ePoller(pool, ts.URL)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.CreateJob(ctx, &models.Job{
		ID:        id,
		City:      "Testville",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}))

	delay := p.runOnce(ctx)
	assert.Equal(t, time.Duration(0), delay)

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ResultData)

	var result models.Result
	require.NoError(t, json.Unmarshal(got.ResultData, &result))
	assert.Len(t, result.ChartData.HourlyToday, 4, "hourly_today matches the injected series length")
	assert.Equal(t, 0.0, result.ChartData.HourlyToday[2].Temperature)
	assert.NotEmpty(t, result.Climate.AnnualAvgTemp)
	assert.Greater(t, result.Climate.TrendAnalysis.PeriodYears, 40.0)
}

func TestEndToEnd_GeocodeMissFailsJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupJobsDB(t)
	ts := cannedMeteoServer(t, false)
	defer ts.Close()

	p, s := e2ePoller(pool, ts.URL)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.CreateJob(ctx, &models.Job{
		ID:        id,
		City:      "Testville",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}))

	p.runOnce(ctx)

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ResultData)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "location not found")
}
