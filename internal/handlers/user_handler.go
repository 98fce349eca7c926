package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"calendar-sync-api/internal/auth"
	"calendar-sync-api/internal/database"
	"calendar-sync-api/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRequest represents the account creation payload
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

var errEmailTaken = errors.New("email already registered")

// Register creates an account with its default calendars
// POST /api/users/register
func Register(c *gin.Context) {
	var req RegisterRequest
	_ = c.ShouldBindJSON(&req)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password are required."})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("hash password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Password: hash}
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		calendars := models.DefaultCalendars(user.ID)
		return tx.Create(&calendars).Error
	})
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "This email address is already in use."})
		return
	}
	if err != nil {
		slog.Error("register user", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	respondWithToken(c, http.StatusCreated, user)
}

// Login exchanges email and password for a token
// POST /api/users/login
func Login(c *gin.Context) {
	var req LoginRequest
	_ = c.ShouldBindJSON(&req)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}

	var user models.User
	err := database.GetDB().Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("login lookup", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}
	if err != nil || !auth.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email or password is incorrect."})
		return
	}

	respondWithToken(c, http.StatusOK, user)
}

func respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := auth.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		slog.Error("generate token", "user", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, AuthResponse{
		Token: token,
		User:  UserResponse{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}
