package format

import (
	"fmt"
	"time"
)

// Clock renders d as m:ss, or h:mm:ss past an hour. Negative durations
// render as 0:00.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
