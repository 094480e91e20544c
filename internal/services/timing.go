package services

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// TrackTime logs how long a background job took. Use with defer at the top
// of the job body: defer TrackTime("feature refresh", time.Now())
func TrackTime(job string, start time.Time) {
	log.WithFields(log.Fields{
		"job":         job,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("job completed")
}
