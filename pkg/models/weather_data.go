package models

// NormalizedReading is the unit-consistent view derived from a RawReading.
// Every numeric value is nil when the contributing raw field was absent, empty
// or not a finite number.
type NormalizedReading struct {
	// Outdoor
	OutdoorTempC      *float64 `json:"outdoor_temp_c"`
	OutdoorFeelsLikeC *float64 `json:"outdoor_feels_like_c"`
	OutdoorDewPointC  *float64 `json:"outdoor_dewpoint_c"`
	OutdoorHumidity   *float64 `json:"outdoor_humidity_pct"`

	// Indoor
	IndoorTempC      *float64 `json:"indoor_temp_c"`
	IndoorFeelsLikeC *float64 `json:"indoor_feels_like_c"`
	IndoorDewPointC  *float64 `json:"indoor_dewpoint_c"`
	IndoorHumidity   *float64 `json:"indoor_humidity_pct"`

	// Solar & UV
	SolarWm2 *float64 `json:"solar_wm2"`
	UVIndex  *float64 `json:"uv_index"`

	// Rain
	RainRateMmH   *float64 `json:"rain_rate_mm_hr"`
	RainHourlyMm  *float64 `json:"rain_hourly_mm"`
	RainDailyMm   *float64 `json:"rain_daily_mm"`
	RainEventMm   *float64 `json:"rain_event_mm"`
	Rain24hMm     *float64 `json:"rain_24h_mm"`
	RainWeeklyMm  *float64 `json:"rain_weekly_mm"`
	RainMonthlyMm *float64 `json:"rain_monthly_mm"`
	RainYearlyMm  *float64 `json:"rain_yearly_mm"`
	RainTotalMm   *float64 `json:"rain_total_mm"`

	// Wind
	WindSpeedMS      *float64 `json:"wind_speed_ms"`
	WindGustMS       *float64 `json:"wind_gust_ms"`
	MaxDailyGustMS   *float64 `json:"wind_gust_max_daily_ms"`
	WindDirDeg       *float64 `json:"wind_dir_deg"`
	WindDirAvg10mDeg *float64 `json:"wind_dir_avg10m_deg"`

	// Pressure
	PressureRelHPa *float64 `json:"pressure_rel_hpa"`
	PressureAbsHPa *float64 `json:"pressure_abs_hpa"`

	// Metadata
	StationID   *string `json:"station_id"`
	StationType *string `json:"stationtype"`
}

// Column is a named normalized value in canonical output order. Exactly one of
// Number and Text is meaningful, depending on the column.
type Column struct {
	Name   string
	Number *float64
	Text   *string
	IsText bool
}

// Columns returns the normalized values in their canonical order
func (n NormalizedReading) Columns() []Column {
	num := func(name string, v *float64) Column { return Column{Name: name, Number: v} }
	txt := func(name string, v *string) Column { return Column{Name: name, Text: v, IsText: true} }

	return []Column{
		num("outdoor_temp_c", n.OutdoorTempC),
		num("outdoor_feels_like_c", n.OutdoorFeelsLikeC),
		num("outdoor_dewpoint_c", n.OutdoorDewPointC),
		num("outdoor_humidity_pct", n.OutdoorHumidity),
		num("indoor_temp_c", n.IndoorTempC),
		num("indoor_feels_like_c", n.IndoorFeelsLikeC),
		num("indoor_dewpoint_c", n.IndoorDewPointC),
		num("indoor_humidity_pct", n.IndoorHumidity),
		num("solar_wm2", n.SolarWm2),
		num("uv_index", n.UVIndex),
		num("rain_rate_mm_hr", n.RainRateMmH),
		num("rain_hourly_mm", n.RainHourlyMm),
		num("rain_daily_mm", n.RainDailyMm),
		num("rain_event_mm", n.RainEventMm),
		num("rain_24h_mm", n.Rain24hMm),
		num("rain_weekly_mm", n.RainWeeklyMm),
		num("rain_monthly_mm", n.RainMonthlyMm),
		num("rain_yearly_mm", n.RainYearlyMm),
		num("rain_total_mm", n.RainTotalMm),
		num("wind_speed_ms", n.WindSpeedMS),
		num("wind_gust_ms", n.WindGustMS),
		num("wind_gust_max_daily_ms", n.MaxDailyGustMS),
		num("wind_dir_deg", n.WindDirDeg),
		num("wind_dir_avg10m_deg", n.WindDirAvg10mDeg),
		num("pressure_rel_hpa", n.PressureRelHPa),
		num("pressure_abs_hpa", n.PressureAbsHPa),
		txt("station_id", n.StationID),
		txt("stationtype", n.StationType),
	}
}

// Map returns the normalized reading as a flat map, used when a normalized
// record is merged with other keys in a JSON response.
func (n NormalizedReading) Map() map[string]interface{} {
	out := make(map[string]interface{})
	for _, c := range n.Columns() {
		switch {
		case c.IsText && c.Text != nil:
			out[c.Name] = *c.Text
		case !c.IsText && c.Number != nil:
			out[c.Name] = *c.Number
		default:
			out[c.Name] = nil
		}
	}
	return out
}
