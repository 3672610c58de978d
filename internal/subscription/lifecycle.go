// Package subscription derives access status from a member's stored
// end-date and computes renewal end-dates. All comparisons are by
// calendar date; time-of-day never participates.
package subscription

import (
	"fmt"
	"time"

	"github.com/sdmedia/clubbot/internal/domain"
)

// DateLayout is the wire and storage format for subscription end-dates.
const DateLayout = "2006-01-02"

// Today returns the current calendar date in UTC, truncated to midnight.
func Today() time.Time {
	return Truncate(time.Now().UTC())
}

// Truncate strips the time-of-day component from t.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsActive reports whether a subscription ending on end (inclusive) is
// live on the given day. A nil end means access was never granted.
func IsActive(end *time.Time, today time.Time) bool {
	if end == nil {
		return false
	}
	return !Truncate(*end).Before(Truncate(today))
}

// MemberActive reports whether the member's record holds a live grant.
func MemberActive(m *domain.MemberRecord, today time.Time) bool {
	return IsActive(m.SubscriptionEnd, today)
}

// Grant computes the end-date for a fresh grant of durationDays starting
// today. The computation is absolute: it never extends a previous
// end-date, so repeated grants do not stack.
func Grant(today time.Time, durationDays int) time.Time {
	return Truncate(today).AddDate(0, 0, durationDays)
}

// ParseEndDate parses an operator-supplied end-date. Malformed input is
// rejected with ErrValidation; it is never coerced to a default.
func ParseEndDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: end date must be %s", domain.ErrValidation, DateLayout)
	}
	return Truncate(t), nil
}

// FormatDate renders a date in the storage layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CountActive returns how many records hold a live grant on the given day.
func CountActive(records []domain.MemberRecord, today time.Time) int {
	active := 0
	for i := range records {
		if MemberActive(&records[i], today) {
			active++
		}
	}
	return active
}
