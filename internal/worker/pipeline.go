package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/climatelab/weathervane/internal/analysis"
	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/pkg/models"
)

// Processor turns a claimed city into a serialized result payload.
type Processor interface {
	Process(ctx context.Context, city string) ([]byte, error)
}

// Pipeline sequences the Open-Meteo fetches and the aggregation for one job:
// geocode, hourly forecast, the ~1-year daily archive, and the multi-decade
// climate archive, then reshapes everything into the result payload.
type Pipeline struct {
	client meteo.Client
	cfg    config.AnalysisConfig
	now    func() time.Time
}

func NewPipeline(client meteo.Client, cfg config.AnalysisConfig) *Pipeline {
	return &Pipeline{client: client, cfg: cfg, now: time.Now}
}

func (p *Pipeline) Process(ctx context.Context, city string) ([]byte, error) {
	// The city column may carry a comma-separated disambiguator ("Paris, FR");
	// only the part before the first comma is geocoded.
	name := strings.TrimSpace(strings.SplitN(city, ",", 2)[0])

	loc, err := p.client.Geocode(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", name, err)
	}

	hourly, err := p.client.HourlyForecast(ctx, loc.Latitude, loc.Longitude, 1)
	if err != nil {
		return nil, fmt.Errorf("hourly forecast: %w", err)
	}

	now := p.now().UTC()

	// The short-horizon archive is degradable: its failure empties the
	// historical charts but must not fail the job.
	historical, err := p.client.DailyArchive(ctx, loc.Latitude, loc.Longitude,
		now.AddDate(0, 0, -p.cfg.HistoricalDays), now)
	if err != nil {
		slog.Warn("historical archive fetch failed, continuing with empty series",
			"city", name, "error", err)
		historical = &meteo.DailySeries{}
	}

	// The climate archive is not: a trend cannot be synthesized from nothing.
	climate, err := p.client.DailyArchive(ctx, loc.Latitude, loc.Longitude,
		now.AddDate(-p.cfg.ClimateYears, 0, 0), now)
	if err != nil {
		return nil, fmt.Errorf("climate archive: %w", err)
	}

	annual := analysis.AnnualMeans(climate)
	trend, err := analysis.LinearTrend(annual)
	if err != nil {
		return nil, fmt.Errorf("climate trend: %w", err)
	}
	heatwaves, tropical := analysis.ThresholdCounts(climate,
		p.cfg.HeatwaveMaxC, p.cfg.TropicalNightMinC)

	result := models.Result{
		ChartData: models.ChartData{
			HourlyToday:            analysis.ReshapeHourly(hourly),
			HistoricalAvgRecords:   analysis.MonthlyRollup(historical),
			HistoricalDailyRecords: analysis.DailyRecords(historical),
		},
		Climate: models.Climate{
			AnnualAvgTemp:         annual,
			HeatwaveDaysPerYear:   heatwaves,
			TropicalNightsPerYear: tropical,
			TrendAnalysis:         trend,
		},
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return payload, nil
}

// Compile-time check that Pipeline implements Processor.
var _ Processor = (*Pipeline)(nil)
