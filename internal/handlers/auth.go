package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/gates"
	"github.com/hsaleh/blog_platform/internal/hash"
	"github.com/hsaleh/blog_platform/internal/models"
	"github.com/hsaleh/blog_platform/internal/mykafka"
	"github.com/hsaleh/blog_platform/internal/tokens"
	"github.com/hsaleh/blog_platform/internal/validation"
)

const loginFailedMessage = "User 'email' or 'password' is incorrect."

type AuthHandler struct {
	DB        *gorm.DB
	Tokens    *tokens.TokenService
	Validator *validation.Validator
	Producer  *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["user_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// Register creates a new account. Any validation failure responds 403
// with a field to message map, the failing fields as keys.
func (h *AuthHandler) Register(c echo.Context) error {
	var req validation.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": "invalid body"})
	}

	report := h.Validator.ValidateRegistration(req)
	if !report.Ok() {
		return c.JSON(http.StatusForbidden, report)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create user")
	}

	h.publish(c, map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, "User account was successfully created.!")
}

// Login authenticates by email and returns the user profile with a
// fresh token pair. An unknown email and a wrong password respond
// identically.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"non_field_errors": []string{loginFailedMessage},
		})
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return c.JSON(http.StatusNotFound, echo.Map{
			"non_field_errors": []string{loginFailedMessage},
		})
	}

	pair, err := h.Tokens.Issue(&user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create tokens")
	}

	h.publish(c, map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"token":      pair,
	})
}

// LogOut blacklists the refresh token supplied in the body. A second
// logout with the same token is a 400 with the blacklist error.
func (h *AuthHandler) LogOut(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"refresh_token": []string{"This field is required."},
		})
	}

	if err := h.Tokens.Blacklist(req.RefreshToken); err != nil {
		msg := "Token is invalid or expired"
		if errors.Is(err, tokens.ErrBlacklisted) {
			msg = "Token is blacklisted"
		}
		return c.JSON(http.StatusBadRequest, echo.Map{
			"refresh_token": []string{msg},
		})
	}

	user := gates.BoundUser(c)
	if user != nil {
		h.publish(c, map[string]any{
			"type":     "user_logged_out",
			"user_id":  user.ID,
			"username": user.Username,
		})
	}

	return c.JSON(http.StatusOK, "User has been logged out.")
}

// Refresh exchanges the body refresh token for a new pair. The refresh
// gate already verified it; the old refresh token is not revoked here.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, gates.DeniedMessage)
	}

	pair, err := h.Tokens.Refresh(req.Refresh)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, gates.DeniedMessage)
	}

	return c.JSON(http.StatusAccepted, pair)
}
