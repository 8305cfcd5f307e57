package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dana/mimic/internal/db"
)

// NextRun computes the next dispatch time for a recurrence rule relative
// to now, formatted for storage. Empty means no automatic dispatch.
//
// Rules: "once" fires immediately and never re-arms; "daily" fires at the
// next local midnight strictly after now; "hourly" and "every_5_minutes"
// are fixed offsets; anything else is parsed as a standard cron
// expression, falling back to now+24h when unparseable.
func NextRun(recurrence string, now time.Time) string {
	switch recurrence {
	case "":
		return ""
	case "once":
		return db.FormatTime(now)
	case "daily":
		return db.FormatTime(nextMidnight(now))
	case "hourly":
		return db.FormatTime(now.Add(time.Hour))
	case "every_5_minutes":
		return db.FormatTime(now.Add(5 * time.Minute))
	}

	sched, err := cron.ParseStandard(recurrence)
	if err != nil {
		log.Printf("scheduler: unparseable recurrence %q, deferring a day: %v", recurrence, err)
		return db.FormatTime(now.Add(24 * time.Hour))
	}
	return db.FormatTime(sched.Next(now))
}

// Recurring reports whether a rule re-arms the task after a run.
func Recurring(recurrence string) bool {
	return recurrence != "" && recurrence != "once"
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
