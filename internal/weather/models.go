package weather

import "fmt"

// Condition is the classified sky condition reported with a packet.
type Condition string

const (
	ConditionSunny  Condition = "Sunny"
	ConditionCloudy Condition = "Cloudy"
	ConditionRainy  Condition = "Rainy"
)

// Conditions lists every classifiable condition, in a stable order.
var Conditions = []Condition{ConditionSunny, ConditionCloudy, ConditionRainy}

// Bounds of the values a source may produce.
const (
	MinTemperature = 15.0
	MaxTemperature = 30.0
	MinHumidity    = 30
	MaxHumidity    = 80
)

// InfoPacket is one retrieval result. Every field is optional and any subset
// may be absent at the same time; an all-absent packet is still a packet.
//
// Fields are pointers so absence is explicit. Read them through the accessor
// helpers in metric.go rather than dereferencing directly.
type InfoPacket struct {
	Temperature *float64   `json:"temperatureC,omitempty"`
	Condition   *Condition `json:"condition,omitempty"`
	Humidity    *int       `json:"humidityPercent,omitempty"`
}

// Empty reports whether every field of the packet is absent.
func (p InfoPacket) Empty() bool {
	return p.Temperature == nil && p.Condition == nil && p.Humidity == nil
}

func (p InfoPacket) String() string {
	return fmt.Sprintf("InfoPacket(temperature=%s, condition=%s, humidity=%s)",
		OrElse(Map(p.Temperature, func(t float64) string { return fmt.Sprintf("%.2f", t) }), "absent"),
		OrElse(Map(p.Condition, func(c Condition) string { return string(c) }), "absent"),
		OrElse(Map(p.Humidity, func(h int) string { return fmt.Sprintf("%d", h) }), "absent"),
	)
}

// Ptr returns a pointer to a copy of v. Handy for building packets.
func Ptr[T any](v T) *T {
	return &v
}
