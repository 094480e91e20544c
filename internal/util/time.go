package util

import (
	"time"

	"github.com/epeers/datamart/internal/models"
	log "github.com/sirupsen/logrus"
)

// nyLoc caches the exchange timezone; session boundaries are defined in
// Eastern time regardless of where producers run.
var nyLoc *time.Location

func init() {
	var err error
	nyLoc, err = time.LoadLocation("America/New_York")
	if err != nil {
		log.Errorf("Failed to load location 'America/New_York': %v. Falling back to UTC.", err)
		nyLoc = time.UTC
	}
}

// ClassifySession maps an instant to its market session. Boundaries follow
// US equity hours: pre-market 04:00-09:30, regular 09:30-16:00, after-hours
// 16:00-20:00, otherwise closed. Weekends are always closed.
func ClassifySession(ts time.Time) models.MarketSession {
	et := ts.In(nyLoc)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return models.SessionClosed
	}

	minutes := et.Hour()*60 + et.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return models.SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return models.SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		return models.SessionAfterHours
	default:
		return models.SessionClosed
	}
}

// DecomposeTime builds the calendar fields of a TimePoint from an instant.
// The instant is normalized to UTC; calendar fields are derived from the
// UTC representation so decomposition is producer-timezone independent.
func DecomposeTime(ts time.Time) models.TimePoint {
	utc := ts.UTC()
	_, week := utc.ISOWeek()
	return models.TimePoint{
		TS:            utc,
		Date:          time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC),
		Year:          utc.Year(),
		Quarter:       (int(utc.Month())-1)/3 + 1,
		Month:         int(utc.Month()),
		Week:          week,
		DayOfWeek:     int(utc.Weekday()),
		MarketSession: ClassifySession(ts),
	}
}
