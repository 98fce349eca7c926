package models

// DefaultCalendarColor is used when a calendar is created without a color.
const DefaultCalendarColor = "#4F7CFF"

// Calendar groups events of one user (Werk, Persoonlijk, ...)
type Calendar struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"user_id" gorm:"column:user_id;index;not null"`
	Name   string `json:"name" gorm:"not null"`
	Color  string `json:"color" gorm:"not null;default:'#4F7CFF'"`
}

// TableName specifies the table name for Calendar Model
func (Calendar) TableName() string {
	return "calendars"
}

// DefaultCalendars returns the calendars every new account starts with.
func DefaultCalendars(userID uint) []Calendar {
	return []Calendar{
		{UserID: userID, Name: "Werk", Color: DefaultCalendarColor},
		{UserID: userID, Name: "Persoonlijk", Color: "rgba(79,124,255,0.6)"},
		{UserID: userID, Name: "Familie", Color: "rgba(79,124,255,0.38)"},
	}
}
