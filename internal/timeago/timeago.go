// Package timeago renders how long ago a unix timestamp was, in the coarse
// wording shown next to imported products.
package timeago

import (
	"fmt"
	"math"
)

// Approximate unit lengths in seconds. A month is 30.1 days and a year is
// twelve of those months.
const (
	minute = 60
	hour   = 3600
	day    = 86400
	week   = 604800
	month  = 2600640
	year   = 31207680
)

type bracket struct {
	divisor  float64
	limit    float64
	singular string
	plural   string
}

var brackets = []bracket{
	{minute, 60, "One minute ago", "%d minutes ago"},
	{hour, 24, "An hour ago", "%d hours ago"},
	{day, 7, "Yesterday", "%d days ago"},
	{week, 4.3, "A week ago", "%d weeks ago"},
	{month, 12, "A month ago", "%d months ago"},
}

// Format describes t relative to now, both unix seconds. Timestamps in the
// future read as "Just now".
func Format(t, now int64) string {
	diff := now - t

	if diff <= 5 {
		return "Just now"
	}
	if diff < minute {
		return fmt.Sprintf("%d seconds ago", diff)
	}

	for _, b := range brackets {
		n := math.Round(float64(diff) / b.divisor)
		if n < b.limit {
			return pick(n, b.singular, b.plural)
		}
	}

	return pick(math.Round(float64(diff)/year), "One year ago", "%d years ago")
}

func pick(n float64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return fmt.Sprintf(plural, int64(n))
}
