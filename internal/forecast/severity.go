package forecast

// Severity is the health category shown next to a predicted AQI.
type Severity struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var (
	Good            = Severity{Label: "Good", Color: "green"}
	Moderate        = Severity{Label: "Moderate", Color: "yellow"}
	UnhealthySens   = Severity{Label: "Unhealthy (Sens.)", Color: "orange"}
	Unhealthy       = Severity{Label: "Unhealthy", Color: "red"}
	VeryUnhealthy   = Severity{Label: "Very Unhealthy", Color: "purple"}
	severityBuckets = []struct {
		below    float64
		severity Severity
	}{
		{50, Good},
		{100, Moderate},
		{150, UnhealthySens},
		{200, Unhealthy},
	}
)

// Bucket classifies an AQI value. Upper bounds are exclusive.
func Bucket(aqi float64) Severity {
	for _, b := range severityBuckets {
		if aqi < b.below {
			return b.severity
		}
	}
	return VeryUnhealthy
}
