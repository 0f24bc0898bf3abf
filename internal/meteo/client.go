package meteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/climatelab/weathervane/internal/config"
	"github.com/sony/gobreaker"
)

// Sentinel errors for Open-Meteo client failures.
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrMeteoUnreachable = errors.New("open-meteo unreachable")
	ErrMeteoTimeout     = errors.New("open-meteo request timeout")
	ErrMeteoQueryError  = errors.New("open-meteo query error")
)

// Client is the interface for fetching weather data.
type Client interface {
	// Geocode resolves a place name to coordinates. Zero candidate results
	// map to ErrLocationNotFound.
	Geocode(ctx context.Context, name string) (Location, error)

	// HourlyForecast returns parallel hourly arrays for the next `days` days.
	HourlyForecast(ctx context.Context, lat, lon float64, days int) (*HourlySeries, error)

	// DailyArchive returns parallel daily arrays for [start, end]. The same
	// endpoint serves both the ~1-year and the multi-decade climate window.
	DailyArchive(ctx context.Context, lat, lon float64, start, end time.Time) (*DailySeries, error)
}

// Location is one geocoding candidate.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// HourlySeries holds time-indexed hourly arrays. Values are pointers because
// the API returns null for missing observations.
type HourlySeries struct {
	Time                     []string
	Temperature              []*float64
	ApparentTemperature      []*float64
	Humidity                 []*float64
	PrecipitationProbability []*float64
	WindSpeed                []*float64
}

// DailySeries holds date-indexed daily arrays.
type DailySeries struct {
	Time             []string
	TempMean         []*float64
	TempMax          []*float64
	TempMin          []*float64
	PrecipitationSum []*float64
	WindMax          []*float64
}

// HTTPClient implements Client against the Open-Meteo HTTP API.
type HTTPClient struct {
	geocodingURL string
	forecastURL  string
	archiveURL   string
	quick        *http.Client
	archive      *http.Client
	circuit      *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a new Open-Meteo client. The bulk archive endpoint gets
// its own, longer timeout.
func NewHTTPClient(cfg config.MeteoConfig) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &HTTPClient{
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		archiveURL:   cfg.ArchiveURL,
		quick:        &http.Client{Timeout: cfg.QuickTimeout},
		archive:      &http.Client{Timeout: cfg.ArchiveTimeout},
		circuit:      cb,
	}
}

func (c *HTTPClient) Geocode(ctx context.Context, name string) (Location, error) {
	params := url.Values{
		"name":     {name},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}
	u := fmt.Sprintf("%s?%s", c.geocodingURL, params.Encode())

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.quick, u, &resp); err != nil {
		return Location{}, err
	}
	if len(resp.Results) == 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}

	r := resp.Results[0]
	return Location{Name: r.Name, Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

func (c *HTTPClient) HourlyForecast(ctx context.Context, lat, lon float64, days int) (*HourlySeries, error) {
	params := url.Values{
		"latitude":      {formatCoord(lat)},
		"longitude":     {formatCoord(lon)},
		"hourly":        {"temperature_2m,apparent_temperature,relative_humidity_2m,precipitation_probability,wind_speed_10m"},
		"forecast_days": {strconv.Itoa(days)},
		"timezone":      {"auto"},
	}
	u := fmt.Sprintf("%s?%s", c.forecastURL, params.Encode())

	var resp forecastResponse
	if err := c.getJSON(ctx, c.quick, u, &resp); err != nil {
		return nil, err
	}

	return &HourlySeries{
		Time:                     resp.Hourly.Time,
		Temperature:              resp.Hourly.Temperature2m,
		ApparentTemperature:      resp.Hourly.ApparentTemperature,
		Humidity:                 resp.Hourly.RelativeHumidity2m,
		PrecipitationProbability: resp.Hourly.PrecipitationProbability,
		WindSpeed:                resp.Hourly.WindSpeed10m,
	}, nil
}

func (c *HTTPClient) DailyArchive(ctx context.Context, lat, lon float64, start, end time.Time) (*DailySeries, error) {
	params := url.Values{
		"latitude":   {formatCoord(lat)},
		"longitude":  {formatCoord(lon)},
		"start_date": {start.Format("2006-01-02")},
		"end_date":   {end.Format("2006-01-02")},
		"daily":      {"temperature_2m_mean,temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max"},
		"timezone":   {"auto"},
	}
	u := fmt.Sprintf("%s?%s", c.archiveURL, params.Encode())

	var resp archiveResponse
	if err := c.getJSON(ctx, c.archive, u, &resp); err != nil {
		return nil, err
	}

	return &DailySeries{
		Time:             resp.Daily.Time,
		TempMean:         resp.Daily.Temperature2mMean,
		TempMax:          resp.Daily.Temperature2mMax,
		TempMin:          resp.Daily.Temperature2mMin,
		PrecipitationSum: resp.Daily.PrecipitationSum,
		WindMax:          resp.Daily.WindSpeed10mMax,
	}, nil
}

// getJSON performs a GET through the circuit breaker and decodes the body into out.
func (c *HTTPClient) getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	_, err := c.circuit.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, classifyError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrMeteoQueryError, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding open-meteo response: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrMeteoUnreachable, err)
	}
	return err
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrMeteoTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrMeteoTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrMeteoUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrMeteoUnreachable, err)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// --- Open-Meteo response types ---

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		ApparentTemperature      []*float64 `json:"apparent_temperature"`
		RelativeHumidity2m       []*float64 `json:"relative_humidity_2m"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		WindSpeed10m             []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

type archiveResponse struct {
	Daily struct {
		Time              []string   `json:"time"`
		Temperature2mMean []*float64 `json:"temperature_2m_mean"`
		Temperature2mMax  []*float64 `json:"temperature_2m_max"`
		Temperature2mMin  []*float64 `json:"temperature_2m_min"`
		PrecipitationSum  []*float64 `json:"precipitation_sum"`
		WindSpeed10mMax   []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
