// Package format renders durations and sizes for display.
package format

import (
	"fmt"
	"math"
	"time"
)

// Duration renders d as zero-padded hours and minutes, e.g. "03:07".
// Hours are not wrapped at 24.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FileSize renders a byte count with a binary unit, rounded to two decimals.
func FileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return fmt.Sprintf("%s %s", formatFloat(value), sizeUnits[i])
}

func formatFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
