package weather

import "fmt"

const notAvailable = "N/A"

// Describe renders the packet as display lines, one per field, substituting
// N/A for absent values.
func Describe(p InfoPacket) []string {
	return []string{
		"Temperature: " + OrElse(Map(p.Temperature, func(t float64) string {
			return fmt.Sprintf("%.1f°C", t)
		}), notAvailable),
		"Condition: " + OrElse(Map(p.Condition, func(c Condition) string {
			return string(c)
		}), notAvailable),
		"Humidity: " + OrElse(Map(p.Humidity, func(h int) string {
			return fmt.Sprintf("%d%%", h)
		}), notAvailable),
	}
}
