package airquality

// AQI bounds as defined by the provider.
const (
	AQIGood     = 1
	AQIFair     = 2
	AQIModerate = 3
	AQIPoor     = 4
	AQIVeryPoor = 5
)

// FallbackColor is used for the map overlay when the AQI is unknown.
const FallbackColor = "#3498db"

var aqiColors = map[int]string{
	AQIGood:     "#009966",
	AQIFair:     "#ffde33",
	AQIModerate: "#ff9933",
	AQIPoor:     "#cc0033",
	AQIVeryPoor: "#660099",
}

var aqiClasses = [...]string{
	"aqi-good",
	"aqi-fair",
	"aqi-moderate",
	"aqi-poor",
	"aqi-very-poor",
}

var aqiLabels = [...]string{
	"Good",
	"Fair",
	"Moderate",
	"Poor",
	"Very Poor",
}

// ValidAQI reports whether aqi is within 1..5.
func ValidAQI(aqi int) bool {
	return aqi >= AQIGood && aqi <= AQIVeryPoor
}

// Color returns the overlay color for an AQI value.
func Color(aqi int) string {
	if c, ok := aqiColors[aqi]; ok {
		return c
	}
	return FallbackColor
}

// Class returns the badge class name for an AQI value, or "" if the
// value is out of range.
func Class(aqi int) string {
	if !ValidAQI(aqi) {
		return ""
	}
	return aqiClasses[aqi-1]
}

// Label returns the human-readable AQI category.
func Label(aqi int) string {
	if !ValidAQI(aqi) {
		return "Unknown"
	}
	return aqiLabels[aqi-1]
}
