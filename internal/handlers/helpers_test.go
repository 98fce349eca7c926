package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"calendar-sync-api/internal/auth"
	"calendar-sync-api/internal/database"
	"calendar-sync-api/internal/models"
	"calendar-sync-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db
	return db
}

// seedUser creates a user with the default calendars and returns it with a token.
func seedUser(t *testing.T, db *gorm.DB, email string) (models.User, []models.Calendar, string) {
	t.Helper()
	user := models.User{Name: "Jan", Email: email, Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	calendars := models.DefaultCalendars(user.ID)
	require.NoError(t, db.Create(&calendars).Error)
	token, err := auth.GenerateToken(user.ID, user.Email, user.Name)
	require.NoError(t, err)
	return user, calendars, token
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type recordingClient struct {
	mu       sync.Mutex
	received [][]byte
}

func (c *recordingClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, message)
	return true
}

func (c *recordingClient) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...)
}
