package gates

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hsaleh/blog_platform/internal/models"
)

// DeniedMessage is the generic denial detail. Every gate failure renders
// identically so a caller cannot tell which predicate rejected it.
const DeniedMessage = "Authentication credentials were not provided."

const (
	UserContextKey = "user"
	PostContextKey = "post"
)

// Middleware adapts the pure gate predicates to echo. Each adapter
// binds the resolved user (and post) onto the request context for the
// handler behind it.
type Middleware struct {
	Gate *Gate
}

func (m *Middleware) RequireAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := m.Gate.Authenticated(requestInfo(c))
		if !d.Allowed {
			return echo.NewHTTPError(http.StatusForbidden, DeniedMessage)
		}
		c.Set(UserContextKey, d.User)
		return next(c)
	}
}

func (m *Middleware) RequireActiveUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := m.Gate.ActiveUser(requestInfo(c), BoundUser(c))
		if !d.Allowed {
			return echo.NewHTTPError(http.StatusForbidden, DeniedMessage)
		}
		c.Set(UserContextKey, d.User)
		return next(c)
	}
}

func (m *Middleware) RequireRefreshToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := m.Gate.RefreshTokenValid(requestInfo(c))
		if !d.Allowed {
			return echo.NewHTTPError(http.StatusForbidden, DeniedMessage)
		}
		c.Set(UserContextKey, d.User)
		return next(c)
	}
}

func (m *Middleware) RequireAuthor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := m.Gate.Author(requestInfo(c), BoundUser(c))
		if !d.Allowed {
			return echo.NewHTTPError(http.StatusForbidden, DeniedMessage)
		}
		c.Set(UserContextKey, d.User)
		c.Set(PostContextKey, d.Post)
		return next(c)
	}
}

// BoundUser returns the user a previous gate bound, or nil.
func BoundUser(c echo.Context) *models.User {
	if u, ok := c.Get(UserContextKey).(*models.User); ok {
		return u
	}
	return nil
}

// BoundPost returns the post the author gate bound, or nil.
func BoundPost(c echo.Context) *models.Post {
	if p, ok := c.Get(PostContextKey).(*models.Post); ok {
		return p
	}
	return nil
}

// requestInfo peeks the request without consuming it. The body is read
// once and restored so the handler can still bind it.
func requestInfo(c echo.Context) RequestInfo {
	info := RequestInfo{
		Authorization: c.Request().Header.Get(echo.HeaderAuthorization),
		PostID:        c.Param("id"),
	}

	req := c.Request()
	if req.Body == nil {
		return info
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return info
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	var fields struct {
		Email   string `json:"email"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		info.Email = fields.Email
		info.RefreshToken = fields.Refresh
	}

	return info
}
