package calendar

import (
	"fmt"
	"io"
	"time"

	"calendar-sync-api/internal/models"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const productID = "-//calendar-sync-api//NONSGML v1.0//EN"

// eventNamespace seeds stable VEVENT UIDs so re-exports update instead of duplicate.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("calendar-sync-api/events"))

// EventUID is the iCalendar UID of an event.
func EventUID(id uint) string {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprint(id))).String()
}

// WriteICS encodes events as a single VCALENDAR. Event times are interpreted in loc
// and written in UTC.
func WriteICS(w io.Writer, name string, events []models.EventWithCalendar, loc *time.Location) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if name != "" {
		cal.Props.SetText(ical.PropName, name)
	}

	stamp := time.Now().UTC()
	for _, e := range events {
		comp, err := toVEvent(e, loc, stamp)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, comp)
	}

	return ical.NewEncoder(w).Encode(cal)
}

func toVEvent(e models.EventWithCalendar, loc *time.Location, stamp time.Time) (*ical.Component, error) {
	start, end, err := e.Bounds(loc)
	if err != nil {
		return nil, err
	}

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, EventUID(e.ID))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ev.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	ev.Props.SetText(ical.PropSummary, e.Title)
	if e.Location != nil && *e.Location != "" {
		ev.Props.SetText(ical.PropLocation, *e.Location)
	}
	if e.Description != nil && *e.Description != "" {
		ev.Props.SetText(ical.PropDescription, *e.Description)
	}
	if e.CalendarName != "" {
		ev.Props.SetText(ical.PropCategories, e.CalendarName)
	}
	if e.CalendarColor != "" {
		ev.Props.SetText(ical.PropColor, e.CalendarColor)
	}
	if e.RRule != "" {
		// RRULE is a structured value; SetText would escape its separators
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = e.RRule
		ev.Props.Set(rule)
	}
	return ev.Component, nil
}
