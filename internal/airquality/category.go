package airquality

// Category is an AQI health band.
type Category string

const (
	CategoryGood                  Category = "Good"
	CategoryModerate              Category = "Moderate"
	CategoryUnhealthyForSensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy             Category = "Unhealthy"
	CategoryVeryUnhealthy         Category = "Very Unhealthy"
	CategoryHazardous             Category = "Hazardous"
)

// Categories lists every band from best to worst.
var Categories = []Category{
	CategoryGood,
	CategoryModerate,
	CategoryUnhealthyForSensitive,
	CategoryUnhealthy,
	CategoryVeryUnhealthy,
	CategoryHazardous,
}

// CategoryFor returns the band an AQI value falls in. Upper bounds are inclusive.
func CategoryFor(aqi float64) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	case aqi <= 150:
		return CategoryUnhealthyForSensitive
	case aqi <= 200:
		return CategoryUnhealthy
	case aqi <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
