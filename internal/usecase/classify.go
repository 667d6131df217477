package usecase

import (
	"time"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/jptime"
)

// Action is the classifier's verdict on what work a persisted record still
// needs this run.
type Action int

const (
	// ActionSkip leaves the record untouched.
	ActionSkip Action = iota
	// ActionLightUpdate refreshes comment count and comment text only.
	ActionLightUpdate
	// ActionFullFetch retrieves body, comment count, comment text and the
	// embedded date.
	ActionFullFetch
)

func (a Action) String() string {
	switch a {
	case ActionLightUpdate:
		return "light-update"
	case ActionFullFetch:
		return "full-fetch"
	default:
		return "skip"
	}
}

// Classify decides the outstanding work for one record. Pure; callers pick
// fetchers off the verdict.
//
// A record whose body was never attempted gets a full fetch regardless of
// its date. A permanently failed body (unavailable sentinel) is not retried.
// Otherwise the record gets a light update while its post date falls within
// the trailing recency window, and is skipped once older. The window starts
// at midnight recencyDays before now; a record with an unparseable date
// counts as outside the window.
func Classify(rec domain.Record, now time.Time, recencyDays int) Action {
	if !rec.BodyAttempted() {
		return ActionFullFetch
	}

	posted, ok := jptime.Parse(rec.PostedAt, now)
	if !ok {
		return ActionSkip
	}

	day := now.In(jptime.JST)
	windowStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, jptime.JST).
		AddDate(0, 0, -recencyDays)
	if posted.Before(windowStart) {
		return ActionSkip
	}
	return ActionLightUpdate
}
