package models

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the wire and storage format of Event.Date.
const DateLayout = "2006-01-02"

// Event is a single calendar entry. Times are hours as decimals: 14.5 = 14:30.
type Event struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CalendarID  uint      `json:"calendar_id" gorm:"column:calendar_id;index;not null"`
	Title       string    `json:"title" gorm:"not null"`
	Date        string    `json:"date" gorm:"not null"`
	StartTime   float64   `json:"start_time" gorm:"column:start_time;not null"`
	EndTime     float64   `json:"end_time" gorm:"column:end_time;not null"`
	Location    *string   `json:"location"`
	Description *string   `json:"description"`
	RRule       string    `json:"rrule,omitempty" gorm:"column:rrule"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Event Model
func (Event) TableName() string {
	return "events"
}

// EventWithCalendar is an event joined with its calendar's display fields
type EventWithCalendar struct {
	Event
	CalendarName  string `json:"calendar_name"`
	CalendarColor string `json:"calendar_color"`
}

// Bounds resolves Date/StartTime/EndTime into absolute instants in loc.
func (e Event) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid event date %q: %w", e.Date, err)
	}
	return day.Add(hoursToDuration(e.StartTime)), day.Add(hoursToDuration(e.EndTime)), nil
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h*60)) * time.Minute
}
