package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
)

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func TestIsExpiringSoon(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"expires later today", now.Add(2 * time.Hour), true},
		{"expired earlier today still counts as day zero", now.Add(-2 * time.Hour), true},
		{"expired yesterday", now.AddDate(0, 0, -1), false},
		{"in twenty days", now.AddDate(0, 0, 20), true},
		{"exactly thirty days", now.AddDate(0, 0, 30), true},
		{"thirty one days", now.AddDate(0, 0, 31), false},
		{"a year out", now.AddDate(1, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpiringSoon(tt.expiry, now))
		})
	}
}

func TestDaysUntil_IgnoresTimeOfDayAndZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	expiry := time.Date(2026, 3, 12, 1, 0, 0, 0, ist) // 2026-03-11 19:30 UTC
	assert.Equal(t, 1, DaysUntil(expiry, now))
}

func TestReminderAvailable(t *testing.T) {
	in20 := now.AddDate(0, 0, 20)
	in60 := now.AddDate(0, 0, 60)

	insurance := func(status models.Status, exp *time.Time) *models.Document {
		return &models.Document{Category: models.CategoryVehicle, DocType: "Insurance", Status: status, ExpiryDate: exp}
	}

	assert.False(t, ReminderAvailable(insurance(models.StatusPending, &in20), now))
	assert.True(t, ReminderAvailable(insurance(models.StatusApproved, &in20), now))
	assert.True(t, ReminderAvailable(insurance(models.StatusRejected, &in20), now))
	assert.False(t, ReminderAvailable(insurance(models.StatusApproved, &in60), now))
	assert.False(t, ReminderAvailable(insurance(models.StatusApproved, nil), now))

	archived := insurance(models.StatusApproved, &in20)
	archived.Archived = true
	assert.False(t, ReminderAvailable(archived, now))
	assert.False(t, ReminderAvailable(nil, now))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-04-01")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "2026-04-01", FormatDate(*d))

	d, err = ParseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDate("01/04/2026")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestWindowBounds(t *testing.T) {
	from, to := WindowBounds(now)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), to)
}
