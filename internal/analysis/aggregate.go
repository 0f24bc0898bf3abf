package analysis

import (
	"math"
	"sort"

	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/pkg/models"
)

// ReshapeHourly projects hourly forecast arrays into per-sample records.
// Null observations become 0.0 so chart consumers never see an undefined number.
func ReshapeHourly(h *meteo.HourlySeries) []models.HourlyRecord {
	records := make([]models.HourlyRecord, 0, len(h.Time))
	for i, ts := range h.Time {
		records = append(records, models.HourlyRecord{
			Time:                     ts,
			Temperature:              valueAt(h.Temperature, i),
			ApparentTemperature:      valueAt(h.ApparentTemperature, i),
			Humidity:                 valueAt(h.Humidity, i),
			PrecipitationProbability: valueAt(h.PrecipitationProbability, i),
			WindSpeed:                valueAt(h.WindSpeed, i),
		})
	}
	return records
}

// DailyRecords is the unaggregated per-day pass-through, unrounded.
func DailyRecords(d *meteo.DailySeries) []models.DailyRecord {
	records := make([]models.DailyRecord, 0, len(d.Time))
	for i, date := range d.Time {
		records = append(records, models.DailyRecord{
			Date:             date,
			TempMean:         valueAt(d.TempMean, i),
			TempMax:          valueAt(d.TempMax, i),
			TempMin:          valueAt(d.TempMin, i),
			PrecipitationSum: valueAt(d.PrecipitationSum, i),
			WindMax:          valueAt(d.WindMax, i),
		})
	}
	return records
}

// MonthlyRollup groups daily records by calendar month: mean of mean/max/min
// temperature and wind max, sum of precipitation, rounded to 2 decimal places.
// Months are returned in chronological order.
func MonthlyRollup(d *meteo.DailySeries) []models.MonthlyRecord {
	type acc struct {
		meanSum, maxSum, minSum, windSum, precipSum float64
		days                                        int
	}

	groups := make(map[string]*acc)
	for i, date := range d.Time {
		if len(date) < 7 {
			continue
		}
		month := date[:7] // YYYY-MM
		a, ok := groups[month]
		if !ok {
			a = &acc{}
			groups[month] = a
		}
		a.meanSum += valueAt(d.TempMean, i)
		a.maxSum += valueAt(d.TempMax, i)
		a.minSum += valueAt(d.TempMin, i)
		a.windSum += valueAt(d.WindMax, i)
		a.precipSum += valueAt(d.PrecipitationSum, i)
		a.days++
	}

	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Strings(months)

	records := make([]models.MonthlyRecord, 0, len(months))
	for _, m := range months {
		a := groups[m]
		n := float64(a.days)
		records = append(records, models.MonthlyRecord{
			Month:            m,
			TempMean:         round2(a.meanSum / n),
			TempMax:          round2(a.maxSum / n),
			TempMin:          round2(a.minSum / n),
			PrecipitationSum: round2(a.precipSum),
			WindMax:          round2(a.windSum / n),
		})
	}
	return records
}

// AnnualMeans resamples a multi-decade daily series to per-year means of the
// daily mean temperature, in chronological order.
func AnnualMeans(d *meteo.DailySeries) []models.AnnualTemp {
	type acc struct {
		sum  float64
		days int
	}

	groups := make(map[int]*acc)
	for i, date := range d.Time {
		year, ok := yearOf(date)
		if !ok {
			continue
		}
		a, exists := groups[year]
		if !exists {
			a = &acc{}
			groups[year] = a
		}
		a.sum += valueAt(d.TempMean, i)
		a.days++
	}

	years := sortedYears(groups)
	annual := make([]models.AnnualTemp, 0, len(years))
	for _, y := range years {
		a := groups[y]
		annual = append(annual, models.AnnualTemp{
			Year: y,
			Temp: round2(a.sum / float64(a.days)),
		})
	}
	return annual
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0.0
	}
	return *vals[i]
}

func yearOf(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	return year, true
}

func sortedYears[V any](groups map[int]V) []int {
	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
