package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"calendar-sync-api/internal/models"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleEvent(id uint, date string, rule string) models.EventWithCalendar {
	return models.EventWithCalendar{
		Event: models.Event{
			ID:         id,
			CalendarID: 1,
			Title:      "Standup",
			Date:       date,
			StartTime:  9,
			EndTime:    9.5,
			Location:   strPtr("Online"),
			RRule:      rule,
		},
		CalendarName:  "Werk",
		CalendarColor: "#4F7CFF",
	}
}

func TestWriteICS(t *testing.T) {
	var buf bytes.Buffer
	events := []models.EventWithCalendar{
		sampleEvent(1, "2026-02-25", ""),
		sampleEvent(2, "2026-02-26", "FREQ=WEEKLY;COUNT=3"),
	}
	require.NoError(t, WriteICS(&buf, "Jan", events, time.UTC))

	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.Contains(t, out, "DTSTART:20260225T090000Z")
	assert.Contains(t, out, "DTEND:20260225T093000Z")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;COUNT=3")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))

	// the output must round-trip through the decoder
	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
	uid, err := cal.Events()[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, EventUID(1), uid)
}

func TestEventUID_Stable(t *testing.T) {
	assert.Equal(t, EventUID(7), EventUID(7))
	assert.NotEqual(t, EventUID(7), EventUID(8))
}

func TestValidateRRule(t *testing.T) {
	require.NoError(t, ValidateRRule("FREQ=DAILY;COUNT=5"))
	require.NoError(t, ValidateRRule("FREQ=WEEKLY;BYDAY=MO,WE"))
	require.Error(t, ValidateRRule("FREQ=SOMETIMES"))
	require.Error(t, ValidateRRule("not a rule"))
	require.ErrorIs(t, ValidateRRule("FREQ=MINUTELY"), ErrFrequencyTooHigh)
	require.ErrorIs(t, ValidateRRule("FREQ=SECONDLY;INTERVAL=5"), ErrFrequencyTooHigh)
	require.NoError(t, ValidateRRule("FREQ=HOURLY;INTERVAL=2"))
}

func TestExpand(t *testing.T) {
	events := []models.EventWithCalendar{
		sampleEvent(1, "2026-03-02", "FREQ=DAILY;COUNT=10"),
		sampleEvent(2, "2026-03-04", ""),
		sampleEvent(3, "2026-04-01", ""),
	}
	from := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)

	occ, err := Expand(events, from, to, time.UTC)
	require.NoError(t, err)
	// daily: 3rd, 4th, 5th; single: 4th
	require.Len(t, occ, 4)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), occ[0].Start)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC), occ[0].End)
	for i := 1; i < len(occ); i++ {
		assert.False(t, occ[i].Start.Before(occ[i-1].Start))
	}
}

func TestExpand_InvalidStoredRule(t *testing.T) {
	_, err := Expand([]models.EventWithCalendar{sampleEvent(1, "2026-03-02", "FREQ=NOPE")},
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	require.Error(t, err)
}

func TestExpand_UnboundedRuleStopsAtLimit(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(366 * 24 * time.Hour)
	event := sampleEvent(1, "2026-03-01", "FREQ=SECONDLY")

	started := time.Now()
	occ, err := Expand([]models.EventWithCalendar{event}, from, to, time.UTC)
	require.NoError(t, err)
	assert.Len(t, occ, MaxOccurrences)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), occ[0].Start)
}

func TestExpand_ZeroDurationAtRangeStart(t *testing.T) {
	event := sampleEvent(1, "2026-03-03", "")
	event.StartTime, event.EndTime = 0, 0
	from := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	occ, err := Expand([]models.EventWithCalendar{event}, from, to, time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, from, occ[0].Start)

	// the range end stays exclusive
	occ, err = Expand([]models.EventWithCalendar{event}, from.Add(-24*time.Hour), from, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, occ)
}
