package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"calendar-sync-api/internal/cache"
	"calendar-sync-api/internal/calendar"
	"calendar-sync-api/internal/database"
	"calendar-sync-api/internal/middleware"
	"calendar-sync-api/internal/models"
	"calendar-sync-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	ownershipTTL    = 5 * time.Minute
	maxExpandWindow = 366 * 24 * time.Hour
)

// OwnershipPurgeInterval is how often PurgeOwners sweeps the ownership cache.
const OwnershipPurgeInterval = ownershipTTL

// EventRequest is the body of create and update
type EventRequest struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	StartTime   *float64 `json:"start_time"`
	EndTime     *float64 `json:"end_time"`
	CalendarID  uint     `json:"calendar_id"`
	Location    *string  `json:"location"`
	Description *string  `json:"description"`
	RRule       string   `json:"rrule"`
}

type calendarKey struct {
	userID     uint
	calendarID uint
}

// EventHandler serves the events and calendars of the logged-in user.
type EventHandler struct {
	relay *realtime.Relay
	push  bool
	loc   *time.Location
	// calendars never change owner, so ownership answers can be cached
	owners *cache.TTLCache[calendarKey, bool]
}

// NewEventHandler builds the handler. With push enabled every change is sent
// to all realtime connections of the account through relay.
func NewEventHandler(relay *realtime.Relay, push bool) *EventHandler {
	return &EventHandler{
		relay:  relay,
		push:   push,
		loc:    time.UTC,
		owners: cache.NewTTLCache[calendarKey, bool](),
	}
}

// PurgeOwners drops expired ownership entries every interval until ctx is done.
func (h *EventHandler) PurgeOwners(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.purgeOwners()
		}
	}
}

func (h *EventHandler) purgeOwners() int {
	removed := h.owners.PurgeExpired()
	if removed > 0 {
		slog.Debug("ownership cache purged", "removed", removed, "live", h.owners.Len())
	}
	return removed
}

// GetEvents handles GET /api/events
func (h *EventHandler) GetEvents(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	events, err := h.listEvents(userID)
	if err != nil {
		slog.Error("list events", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch events."})
		return
	}
	c.JSON(http.StatusOK, events)
}

// CreateEvent handles POST /api/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	var req EventRequest
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" || req.Date == "" || req.StartTime == nil || req.EndTime == nil || req.CalendarID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, date, times and calendar are required."})
		return
	}
	if msg := validateEventRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	owned, err := h.ownsCalendar(userID, req.CalendarID)
	if err != nil {
		slog.Error("check calendar owner", "user", userID, "calendar", req.CalendarID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create event."})
		return
	}
	if !owned {
		c.JSON(http.StatusForbidden, gin.H{"error": "This calendar does not exist or is not yours."})
		return
	}

	event := models.Event{CalendarID: req.CalendarID}
	applyEventRequest(&event, req)
	if err := database.GetDB().Create(&event).Error; err != nil {
		slog.Error("create event", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create event."})
		return
	}

	h.notify(userID, "created", event)
	c.JSON(http.StatusCreated, event)
}

// UpdateEvent handles PUT /api/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	event, ok := h.loadOwnedEvent(c, userID)
	if !ok {
		return
	}

	var req EventRequest
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" || req.Date == "" || req.StartTime == nil || req.EndTime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, date and times are required."})
		return
	}
	if msg := validateEventRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if req.CalendarID != 0 && req.CalendarID != event.CalendarID {
		owned, err := h.ownsCalendar(userID, req.CalendarID)
		if err != nil {
			slog.Error("check calendar owner", "user", userID, "calendar", req.CalendarID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update event."})
			return
		}
		if !owned {
			c.JSON(http.StatusForbidden, gin.H{"error": "This calendar does not exist or is not yours."})
			return
		}
		event.CalendarID = req.CalendarID
	}

	applyEventRequest(&event, req)
	if err := database.GetDB().Save(&event).Error; err != nil {
		slog.Error("update event", "user", userID, "event", event.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update event."})
		return
	}

	h.notify(userID, "updated", event)
	c.JSON(http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	event, ok := h.loadOwnedEvent(c, userID)
	if !ok {
		return
	}
	if err := database.GetDB().Delete(&event).Error; err != nil {
		slog.Error("delete event", "user", userID, "event", event.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete event."})
		return
	}

	h.notify(userID, "deleted", gin.H{"id": event.ID})
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted."})
}

// GetCalendars handles GET /api/events/calendars
func (h *EventHandler) GetCalendars(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	calendars := []models.Calendar{}
	if err := database.GetDB().Where("user_id = ?", userID).Order("id").Find(&calendars).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch calendars."})
		return
	}
	c.JSON(http.StatusOK, calendars)
}

// ExportICS handles GET /api/events/export.ics
func (h *EventHandler) ExportICS(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	events, err := h.listEvents(userID)
	if err != nil {
		slog.Error("list events for export", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch events."})
		return
	}

	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, c.GetString(middleware.ContextName), events, h.loc); err != nil {
		slog.Error("encode calendar", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode calendar"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// GetOccurrences handles GET /api/events/occurrences?from=YYYY-MM-DD&to=YYYY-MM-DD
// The range is [from, to); recurring events are expanded within it.
func (h *EventHandler) GetOccurrences(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	from, errFrom := time.ParseInLocation(models.DateLayout, c.Query("from"), h.loc)
	to, errTo := time.ParseInLocation(models.DateLayout, c.Query("to"), h.loc)
	if errFrom != nil || errTo != nil || !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be dates (YYYY-MM-DD) with from before to."})
		return
	}
	if to.Sub(from) > maxExpandWindow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Range may span at most one year."})
		return
	}

	events, err := h.listEvents(userID)
	if err != nil {
		slog.Error("list events for occurrences", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch events."})
		return
	}
	occurrences, err := calendar.Expand(events, from, to, h.loc)
	if err != nil {
		slog.Error("expand events", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not expand events."})
		return
	}
	if occurrences == nil {
		occurrences = []calendar.Occurrence{}
	}
	c.JSON(http.StatusOK, occurrences)
}

func (h *EventHandler) listEvents(userID uint) ([]models.EventWithCalendar, error) {
	events := []models.EventWithCalendar{}
	err := database.GetDB().Table("events").
		Select("events.*, calendars.name AS calendar_name, calendars.color AS calendar_color").
		Joins("JOIN calendars ON calendars.id = events.calendar_id").
		Where("calendars.user_id = ?", userID).
		Order("events.date, events.start_time").
		Scan(&events).Error
	return events, err
}

func (h *EventHandler) ownsCalendar(userID, calendarID uint) (bool, error) {
	key := calendarKey{userID: userID, calendarID: calendarID}
	if owned, ok := h.owners.Get(key); ok {
		return owned, nil
	}

	var count int64
	if err := database.GetDB().Model(&models.Calendar{}).
		Where("id = ? AND user_id = ?", calendarID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	owned := count > 0
	// only positive answers are stable; a missing calendar may still be created
	if owned {
		h.owners.Set(key, true, ownershipTTL)
	}
	return owned, nil
}

// loadOwnedEvent writes the error response itself and reports whether to continue.
func (h *EventHandler) loadOwnedEvent(c *gin.Context, userID uint) (models.Event, bool) {
	var event models.Event
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "This event does not exist or is not yours."})
		return event, false
	}

	err = database.GetDB().
		Select("events.*").
		Joins("JOIN calendars ON calendars.id = events.calendar_id").
		Where("events.id = ? AND calendars.user_id = ?", id, userID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This event does not exist or is not yours."})
		return event, false
	}
	if err != nil {
		slog.Error("load event", "user", userID, "event", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch event."})
		return event, false
	}
	return event, true
}

func (h *EventHandler) notify(userID uint, action string, payload any) {
	if !h.push || h.relay == nil {
		return
	}
	msg, err := realtime.NewEventUpdate(gin.H{"action": action, "event": payload})
	if err != nil {
		slog.Warn("encode realtime notification", "error", err)
		return
	}
	identity := realtime.Identity(strconv.FormatUint(uint64(userID), 10))
	h.relay.Notify(identity, msg)
}

func validateEventRequest(req EventRequest) string {
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		return "date must be formatted as YYYY-MM-DD."
	}
	if *req.StartTime < 0 || *req.EndTime > 24 || *req.EndTime < *req.StartTime {
		return "start_time and end_time must be hours between 0 and 24 with start before end."
	}
	if req.RRule != "" {
		if err := calendar.ValidateRRule(req.RRule); err != nil {
			return fmt.Sprintf("Invalid rrule: %v", err)
		}
	}
	return ""
}

func applyEventRequest(event *models.Event, req EventRequest) {
	event.Title = req.Title
	event.Date = req.Date
	event.StartTime = *req.StartTime
	event.EndTime = *req.EndTime
	event.Location = nonEmpty(req.Location)
	event.Description = nonEmpty(req.Description)
	event.RRule = req.RRule
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
