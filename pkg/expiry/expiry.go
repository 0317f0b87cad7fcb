// Package expiry decides when a document with an expiry date is due for a
// renewal reminder.
package expiry

import (
	"fmt"
	"strings"
	"time"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
)

// Window is how far ahead of the expiry date reminders are offered.
const Window = 30

const dateLayout = "2006-01-02"

// DaysUntil returns the whole calendar days from now to expiry, both taken
// as UTC dates. A negative result means the document already expired.
func DaysUntil(expiry, now time.Time) int {
	e := truncateDay(expiry)
	n := truncateDay(now)
	return int(e.Sub(n).Hours() / 24)
}

// IsExpiringSoon is true iff 0 <= days(expiry - now) <= 30.
func IsExpiringSoon(expiry, now time.Time) bool {
	d := DaysUntil(expiry, now)
	return d >= 0 && d <= Window
}

// ReminderAvailable reports whether a reviewer may send a renewal reminder
// for doc at now.
func ReminderAvailable(doc *models.Document, now time.Time) bool {
	if doc == nil || doc.ExpiryDate == nil || doc.Archived {
		return false
	}
	if doc.Status == models.StatusPending {
		return false
	}
	return IsExpiringSoon(*doc.ExpiryDate, now)
}

// WindowBounds returns the expiry range [from, to] whose documents are
// eligible for a reminder at now.
func WindowBounds(now time.Time) (time.Time, time.Time) {
	from := truncateDay(now)
	return from, from.AddDate(0, 0, Window)
}

// ParseDate parses an optional YYYY-MM-DD expiry date. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("expiry date %q: %w", s, errs.ErrValidation)
	}
	return &t, nil
}

// FormatDate renders t the way ParseDate accepts it.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Normalize returns t as midnight of its UTC date, the form expiry dates
// are stored and compared in. A nil t stays nil.
func Normalize(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := truncateDay(*t)
	return &d
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
