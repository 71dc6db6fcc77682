package cli

import (
	"fmt"
	"time"
)

// FormatBytes renders a byte count as B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatElapsed formats a remote call duration as seconds with one decimal.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
