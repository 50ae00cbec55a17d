package normalizer

// Quantity is one logical measurement and the ordered list of raw field names
// it may be read from. The first alias holding a non-empty value wins.
type Quantity struct {
	Name    string
	Aliases []string
	Convert func(float64) float64
}

// Quantity names
const (
	OutdoorTemp      = "outdoor_temp"
	OutdoorHumidity  = "outdoor_humidity"
	OutdoorFeelsLike = "outdoor_feels_like"
	OutdoorDewPoint  = "outdoor_dewpoint"
	IndoorTemp       = "indoor_temp"
	IndoorHumidity   = "indoor_humidity"
	IndoorFeelsLike  = "indoor_feels_like"
	IndoorDewPoint   = "indoor_dewpoint"
	Solar            = "solar"
	UV               = "uv"
	RainRate         = "rain_rate"
	RainIncremental  = "rain_incremental"
	RainHourly       = "rain_hourly"
	RainDaily        = "rain_daily"
	RainEvent        = "rain_event"
	Rain24h          = "rain_24h"
	RainWeekly       = "rain_weekly"
	RainMonthly      = "rain_monthly"
	RainYearly       = "rain_yearly"
	RainTotal        = "rain_total"
	WindSpeed        = "wind_speed"
	WindGust         = "wind_gust"
	MaxDailyGust     = "max_daily_gust"
	WindDir          = "wind_dir"
	WindDirAvg10m    = "wind_dir_avg10m"
	PressureRelHPa   = "pressure_rel_hpa"
	PressureRelInHg  = "pressure_rel_inhg"
	PressureAbsHPa   = "pressure_abs_hpa"
	PressureAbsInHg  = "pressure_abs_inhg"
	StationID        = "station_id"
	StationType      = "station_type"
)

// DefaultQuantities is the alias table covering both the Ecowitt protocol and
// the older Wunderground upload protocol. Keys are matched lower-cased.
var DefaultQuantities = []Quantity{
	{Name: OutdoorTemp, Aliases: []string{"tempf", "outtempf", "temperature"}, Convert: FahrenheitToCelsius},
	{Name: OutdoorHumidity, Aliases: []string{"humidity", "outhumidity"}},
	{Name: OutdoorFeelsLike, Aliases: []string{"feelslikef", "heatindexf", "windchillf"}, Convert: FahrenheitToCelsius},
	{Name: OutdoorDewPoint, Aliases: []string{"dewpointf", "dewptf"}, Convert: FahrenheitToCelsius},

	{Name: IndoorTemp, Aliases: []string{"indoortempf", "tempinf"}, Convert: FahrenheitToCelsius},
	{Name: IndoorHumidity, Aliases: []string{"indoorhumidity", "humidityin"}},
	{Name: IndoorFeelsLike, Aliases: []string{"indoorfeelslikef", "feelslikeinf"}, Convert: FahrenheitToCelsius},
	{Name: IndoorDewPoint, Aliases: []string{"indoordewptf", "dewpointinf"}, Convert: FahrenheitToCelsius},

	{Name: Solar, Aliases: []string{"solarradiation", "solar"}},
	{Name: UV, Aliases: []string{"uv"}},

	{Name: RainRate, Aliases: []string{"rainratein"}, Convert: InchesToMm},
	{Name: RainIncremental, Aliases: []string{"rainin"}, Convert: InchesToMm},
	{Name: RainHourly, Aliases: []string{"hourlyrainin", "rainin"}, Convert: InchesToMm},
	{Name: RainDaily, Aliases: []string{"dailyrainin"}, Convert: InchesToMm},
	{Name: RainEvent, Aliases: []string{"eventrainin"}, Convert: InchesToMm},
	{Name: Rain24h, Aliases: []string{"24hourrainin", "rain24hin"}, Convert: InchesToMm},
	{Name: RainWeekly, Aliases: []string{"weeklyrainin"}, Convert: InchesToMm},
	{Name: RainMonthly, Aliases: []string{"monthlyrainin"}, Convert: InchesToMm},
	{Name: RainYearly, Aliases: []string{"yearlyrainin"}, Convert: InchesToMm},
	{Name: RainTotal, Aliases: []string{"totalrainin"}, Convert: InchesToMm},

	{Name: WindSpeed, Aliases: []string{"windspeedmph"}, Convert: MphToMetersPerSecond},
	{Name: WindGust, Aliases: []string{"windgustmph"}, Convert: MphToMetersPerSecond},
	{Name: MaxDailyGust, Aliases: []string{"maxdailygust"}, Convert: MphToMetersPerSecond},
	{Name: WindDir, Aliases: []string{"winddir"}},
	{Name: WindDirAvg10m, Aliases: []string{"winddir_avg10m", "windavgdir", "winddir10m"}},

	{Name: PressureRelHPa, Aliases: []string{"baromrelhpa"}},
	{Name: PressureRelInHg, Aliases: []string{"baromrelin", "baromin"}, Convert: InHgToHectopascal},
	{Name: PressureAbsHPa, Aliases: []string{"baromabshpa"}},
	{Name: PressureAbsInHg, Aliases: []string{"baromabsin"}, Convert: InHgToHectopascal},
}

// DefaultTextQuantities lists metadata passed through as strings
var DefaultTextQuantities = []Quantity{
	{Name: StationID, Aliases: []string{"id", "station"}},
	{Name: StationType, Aliases: []string{"stationtype", "softwaretype"}},
}
