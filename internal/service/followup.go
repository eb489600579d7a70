package service

import (
	"time"

	"github.com/linguakurs/crm-api/internal/models"
)

// weekStart returns Monday 00:00 of the week containing day. Go's Weekday
// numbers Sunday as 0, so the offset is corrected to anchor weeks on Monday.
func weekStart(day time.Time) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// FollowUpWindow resolves a bucket into the date constraints applied to the
// follow-up column. Overdue means strictly before today's local midnight;
// this-week and next-week are Monday-anchored 7-day windows.
func FollowUpWindow(bucket models.FollowUpBucket, today time.Time) (before, from, until *time.Time) {
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	switch bucket {
	case models.FollowUpOverdue:
		return &midnight, nil, nil
	case models.FollowUpThisWeek:
		start := weekStart(midnight)
		end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
		return nil, &start, &end
	case models.FollowUpNextWeek:
		start := weekStart(midnight).AddDate(0, 0, 7)
		end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
		return nil, &start, &end
	default:
		return nil, nil, nil
	}
}

// ClassifyFollowUp buckets a follow-up date relative to today. The second
// return is false when the date falls outside all buckets (further out than
// next week).
func ClassifyFollowUp(followUp, today time.Time) (models.FollowUpBucket, bool) {
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if followUp.Before(midnight) {
		return models.FollowUpOverdue, true
	}
	thisStart := weekStart(midnight)
	nextStart := thisStart.AddDate(0, 0, 7)
	afterNext := nextStart.AddDate(0, 0, 7)
	switch {
	case !followUp.Before(thisStart) && followUp.Before(nextStart):
		return models.FollowUpThisWeek, true
	case !followUp.Before(nextStart) && followUp.Before(afterNext):
		return models.FollowUpNextWeek, true
	default:
		return "", false
	}
}
