package weather

import (
	"encoding/json"
	"strconv"
)

// Unavailable is the rendered value of a metric whose source field is absent.
const Unavailable = "unavailable"

// Map applies fn to the value behind v, or returns nil when v is absent.
func Map[T, U any](v *T, fn func(T) U) *U {
	if v == nil {
		return nil
	}
	u := fn(*v)
	return &u
}

// OrElse returns the value behind v, or def when v is absent.
func OrElse[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

// Metric is a value derived from a packet field. A metric computed from an
// absent field carries no value and renders as Unavailable.
type Metric struct {
	Name  string
	value *float64
}

// Value returns the metric value and whether it is available.
func (m Metric) Value() (float64, bool) {
	if m.value == nil {
		return 0, false
	}
	return *m.value, true
}

func (m Metric) String() string {
	return OrElse(Map(m.value, func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}), Unavailable)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	v, ok := m.Value()
	if !ok {
		return json.Marshal(map[string]any{"name": m.Name, "value": Unavailable})
	}
	return json.Marshal(map[string]any{"name": m.Name, "value": v})
}

// DoubledHumidity is the humidity reading times two.
func DoubledHumidity(p InfoPacket) Metric {
	return Metric{
		Name:  "humidity_doubled",
		value: Map(p.Humidity, func(h int) float64 { return float64(h) * 2 }),
	}
}

// FahrenheitTemperature converts the temperature reading to Fahrenheit.
func FahrenheitTemperature(p InfoPacket) Metric {
	return Metric{
		Name:  "temperature_f",
		value: Map(p.Temperature, func(c float64) float64 { return c*9/5 + 32 }),
	}
}
