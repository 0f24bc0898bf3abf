package models

// Result is the payload serialized into jobs.result_data on completion.
// The frontend reads it as-is, so the JSON keys here are the wire contract.
type Result struct {
	ChartData ChartData `json:"chart_data"`
	Climate   Climate   `json:"climate"`
}

type ChartData struct {
	HourlyToday            []HourlyRecord  `json:"hourly_today"`
	HistoricalAvgRecords   []MonthlyRecord `json:"historical_avg_records"`
	HistoricalDailyRecords []DailyRecord   `json:"historical_daily_records"`
}

// HourlyRecord is one hourly forecast sample for the current day.
// PrecipitationProbability is exactly that; an earlier draft of the worker
// mislabeled the field "pressure" and the frontend was fixed to match.
type HourlyRecord struct {
	Time                     string  `json:"time"`
	Temperature              float64 `json:"temperature"`
	ApparentTemperature      float64 `json:"apparent_temperature"`
	Humidity                 float64 `json:"humidity"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	WindSpeed                float64 `json:"wind_speed"`
}

// MonthlyRecord is a calendar-month rollup of the ~1-year daily archive.
// All values are rounded to 2 decimal places.
type MonthlyRecord struct {
	Month            string  `json:"month"` // YYYY-MM
	TempMean         float64 `json:"temp_mean"`
	TempMax          float64 `json:"temp_max"`
	TempMin          float64 `json:"temp_min"`
	PrecipitationSum float64 `json:"precipitation_sum"`
	WindMax          float64 `json:"wind_max"`
}

// DailyRecord is one unaggregated day from the archive, unrounded.
type DailyRecord struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	TempMean         float64 `json:"temp_mean"`
	TempMax          float64 `json:"temp_max"`
	TempMin          float64 `json:"temp_min"`
	PrecipitationSum float64 `json:"precipitation_sum"`
	WindMax          float64 `json:"wind_max"`
}

// Climate is the long-horizon (~50 year) trend block.
type Climate struct {
	AnnualAvgTemp         []AnnualTemp    `json:"annual_avg_temp"`
	HeatwaveDaysPerYear   []HeatwaveYear  `json:"heatwave_days_per_year"`
	TropicalNightsPerYear []TropicalYear  `json:"tropical_nights_per_year"`
	TrendAnalysis         TrendAnalysis   `json:"trend_analysis"`
}

type AnnualTemp struct {
	Year int     `json:"year"`
	Temp float64 `json:"temp"`
}

type HeatwaveYear struct {
	Year int `json:"year"`
	Days int `json:"days"`
}

type TropicalYear struct {
	Year   int `json:"year"`
	Nights int `json:"nights"`
}

type TrendAnalysis struct {
	SlopePerYear  float64 `json:"slope_per_year"`
	TotalTempRise float64 `json:"total_temp_rise"`
	PeriodYears   float64 `json:"period_years"`
}
