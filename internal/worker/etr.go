package worker

import (
	"fmt"
	"time"

	"rendercue/internal/status"
)

// EstimateRemaining projects the time left from the average frame time so
// far. ok is false while there is nothing to average.
func EstimateRemaining(elapsed time.Duration, finished, total int) (time.Duration, bool) {
	if finished <= 0 || total <= 0 || elapsed < 0 {
		return 0, false
	}
	left := total - finished
	if left < 0 {
		left = 0
	}
	avg := elapsed / time.Duration(finished)
	return avg * time.Duration(left), true
}

// FormatETR renders mm:ss, or hh:mm:ss once an hour or more remains.
func FormatETR(elapsed time.Duration, finished, total int) string {
	remaining, ok := EstimateRemaining(elapsed, finished, total)
	if !ok {
		return status.ETRUnknown
	}
	secs := int(remaining / time.Second)
	hrs, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60
	if hrs > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
