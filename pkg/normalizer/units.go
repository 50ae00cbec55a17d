package normalizer

import "math"

// Conversion factors for the imperial units Ecowitt and Wunderground stations send
const (
	InHgToHPa = 33.8639
	InToMm    = 25.4
	MphToMS   = 0.44704
)

// Magnus coefficients (Sonntag 1990) used for the dew point fallback
const (
	magnusA = 17.62
	magnusB = 243.12
)

// FahrenheitToCelsius converts °F to °C
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// InchesToMm converts inches of rain to millimetres
func InchesToMm(in float64) float64 {
	return in * InToMm
}

// MphToMetersPerSecond converts miles per hour to m/s
func MphToMetersPerSecond(mph float64) float64 {
	return mph * MphToMS
}

// InHgToHectopascal converts inches of mercury to hPa
func InHgToHectopascal(inHg float64) float64 {
	return inHg * InHgToHPa
}

// DewPoint approximates the dew point in °C from an air temperature in °C and a
// relative humidity in percent. It returns nil if either input is nil or the
// result is not finite (e.g. a humidity of 0).
func DewPoint(tempC, humidity *float64) *float64 {
	if tempC == nil || humidity == nil {
		return nil
	}
	t := *tempC
	gamma := (magnusA*t)/(magnusB+t) + math.Log(*humidity/100)
	td := (magnusB * gamma) / (magnusA - gamma)
	return finite(td)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
