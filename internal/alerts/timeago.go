package alerts

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders the age of ts relative to now in floored whole-minute
// buckets. Timestamps in the future count as "Just now".
func FormatTimeAgo(ts, now time.Time) string {
	minutes := int64(now.Sub(ts) / time.Minute)

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/1440)
	}
}
