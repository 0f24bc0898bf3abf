package analysis

import (
	"errors"
	"fmt"

	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/pkg/models"
)

// ErrInsufficientData means the series is too short to fit a trend.
// A fabricated slope would be worse than a failed job.
var ErrInsufficientData = errors.New("insufficient data for trend estimation")

const daysPerYear = 365.25

// LinearTrend fits a least-squares line through annual mean temperatures.
// The regressor is time in days from the first year; the per-day slope is
// scaled by 365.25 into degrees per year. Total rise is slope multiplied by
// the window length in years.
func LinearTrend(annual []models.AnnualTemp) (models.TrendAnalysis, error) {
	n := len(annual)
	if n < 2 {
		return models.TrendAnalysis{}, fmt.Errorf("%w: %d annual points", ErrInsufficientData, n)
	}

	firstYear := annual[0].Year
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range annual {
		x := float64(p.Year-firstYear) * daysPerYear
		sumX += x
		sumY += p.Temp
		sumXY += x * p.Temp
		sumXX += x * x
	}

	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return models.TrendAnalysis{}, fmt.Errorf("%w: degenerate time axis", ErrInsufficientData)
	}

	slopePerDay := (nf*sumXY - sumX*sumY) / denom
	slopePerYear := slopePerDay * daysPerYear
	periodYears := float64(annual[n-1].Year - firstYear)

	return models.TrendAnalysis{
		SlopePerYear:  slopePerYear,
		TotalTempRise: slopePerYear * periodYears,
		PeriodYears:   periodYears,
	}, nil
}

// ThresholdCounts tallies, per year, days whose max temperature exceeds
// heatwaveMaxC and days whose min temperature exceeds tropicalNightMinC.
// Null observations substitute 0.0 and therefore never count as an event.
func ThresholdCounts(d *meteo.DailySeries, heatwaveMaxC, tropicalNightMinC float64) ([]models.HeatwaveYear, []models.TropicalYear) {
	type counts struct {
		heatwaveDays   int
		tropicalNights int
	}

	groups := make(map[int]*counts)
	for i, date := range d.Time {
		year, ok := yearOf(date)
		if !ok {
			continue
		}
		c, exists := groups[year]
		if !exists {
			c = &counts{}
			groups[year] = c
		}
		if valueAt(d.TempMax, i) > heatwaveMaxC {
			c.heatwaveDays++
		}
		if valueAt(d.TempMin, i) > tropicalNightMinC {
			c.tropicalNights++
		}
	}

	years := sortedYears(groups)
	heatwaves := make([]models.HeatwaveYear, 0, len(years))
	tropical := make([]models.TropicalYear, 0, len(years))
	for _, y := range years {
		c := groups[y]
		heatwaves = append(heatwaves, models.HeatwaveYear{Year: y, Days: c.heatwaveDays})
		tropical = append(tropical, models.TropicalYear{Year: y, Nights: c.tropicalNights})
	}
	return heatwaves, tropical
}
