// Package normalizer maps heterogeneous station payloads onto a unit-consistent
// NormalizedReading. It has no I/O and no hidden state: the same fields always
// produce the same output.
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sguter90/weatherlog/pkg/models"
)

// Normalizer resolves quantities through an ordered alias table
type Normalizer struct {
	quantities []Quantity
	text       []Quantity
}

// New creates a Normalizer using the given alias tables. Nil tables fall back to
// the defaults.
func New(quantities, text []Quantity) *Normalizer {
	if quantities == nil {
		quantities = DefaultQuantities
	}
	if text == nil {
		text = DefaultTextQuantities
	}
	return &Normalizer{quantities: quantities, text: text}
}

var defaultNormalizer = New(nil, nil)

// Normalize converts fields using the default alias table
func Normalize(fields models.Fields) models.NormalizedReading {
	return defaultNormalizer.Normalize(fields)
}

// Values holds resolved numeric quantities keyed by quantity name
type Values map[string]*float64

// Resolve looks up every numeric quantity in the table. Each quantity takes the
// first alias with a non-empty value; a value that does not parse to a finite
// number resolves to nil rather than falling through to the next alias.
func (n *Normalizer) Resolve(fields models.Fields) Values {
	lower := fields.Lower()
	out := make(Values, len(n.quantities))
	for _, q := range n.quantities {
		raw, ok := pick(lower, q.Aliases)
		if !ok {
			out[q.Name] = nil
			continue
		}
		v := Coerce(raw)
		if v != nil && q.Convert != nil {
			v = finite(q.Convert(*v))
		}
		out[q.Name] = v
	}
	return out
}

// ResolveText looks up every metadata quantity in the table
func (n *Normalizer) ResolveText(fields models.Fields) map[string]*string {
	lower := fields.Lower()
	out := make(map[string]*string, len(n.text))
	for _, q := range n.text {
		raw, ok := pick(lower, q.Aliases)
		if !ok {
			out[q.Name] = nil
			continue
		}
		out[q.Name] = Text(raw)
	}
	return out
}

// Normalize converts raw station fields into a NormalizedReading
func (n *Normalizer) Normalize(fields models.Fields) models.NormalizedReading {
	v := n.Resolve(fields)
	t := n.ResolveText(fields)

	r := models.NormalizedReading{
		OutdoorTempC:      v[OutdoorTemp],
		OutdoorHumidity:   v[OutdoorHumidity],
		OutdoorFeelsLikeC: v[OutdoorFeelsLike],
		OutdoorDewPointC:  v[OutdoorDewPoint],

		IndoorTempC:      v[IndoorTemp],
		IndoorHumidity:   v[IndoorHumidity],
		IndoorFeelsLikeC: v[IndoorFeelsLike],
		IndoorDewPointC:  v[IndoorDewPoint],

		SolarWm2: v[Solar],
		UVIndex:  v[UV],

		RainRateMmH:   v[RainRate],
		RainHourlyMm:  v[RainHourly],
		RainDailyMm:   v[RainDaily],
		RainEventMm:   v[RainEvent],
		Rain24hMm:     v[Rain24h],
		RainWeeklyMm:  v[RainWeekly],
		RainMonthlyMm: v[RainMonthly],
		RainYearlyMm:  v[RainYearly],
		RainTotalMm:   v[RainTotal],

		WindSpeedMS:      v[WindSpeed],
		WindGustMS:       v[WindGust],
		MaxDailyGustMS:   v[MaxDailyGust],
		WindDirDeg:       v[WindDir],
		WindDirAvg10mDeg: v[WindDirAvg10m],

		PressureRelHPa: firstNonNil(v[PressureRelHPa], v[PressureRelInHg]),
		PressureAbsHPa: firstNonNil(v[PressureAbsHPa], v[PressureAbsInHg]),

		StationID:   t[StationID],
		StationType: t[StationType],
	}

	if r.OutdoorDewPointC == nil {
		r.OutdoorDewPointC = DewPoint(r.OutdoorTempC, r.OutdoorHumidity)
	}
	if r.IndoorDewPointC == nil {
		r.IndoorDewPointC = DewPoint(r.IndoorTempC, r.IndoorHumidity)
	}

	// Wunderground only reports the accumulation since the last upload
	if r.RainRateMmH == nil {
		if inc := v[RainIncremental]; inc != nil {
			r.RainRateMmH = finite(*inc * 60)
		}
	}

	return r
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// pick returns the value of the first alias that is present and not empty
func pick(fields models.Fields, aliases []string) (interface{}, bool) {
	for _, a := range aliases {
		v, ok := fields[a]
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case json.Number:
		return strings.TrimSpace(t.String()) == ""
	}
	return false
}

// Coerce converts a raw field value to a finite float64. Nil, empty strings,
// malformed numbers, booleans and non-finite results all yield nil.
func Coerce(v interface{}) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Text renders a raw field value as a string for metadata passthrough
func Text(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
