package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/gates"
	"github.com/hsaleh/blog_platform/internal/models"
	"github.com/hsaleh/blog_platform/internal/mykafka"
	"github.com/hsaleh/blog_platform/internal/util"
	"github.com/hsaleh/blog_platform/internal/validation"
)

type PostHandler struct {
	DB        *gorm.DB
	Validator *validation.Validator
	Producer  *mykafka.Producer
	Sanitizer *bluemonday.Policy
}

func (h *PostHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "post_events", fmt.Sprint(event["post_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *PostHandler) sanitize(content string) string {
	if h.Sanitizer == nil {
		return content
	}
	return h.Sanitizer.Sanitize(content)
}

// CreatePost stores a new post owned by the authenticated user.
func (h *PostHandler) CreatePost(c echo.Context) error {
	user := gates.BoundUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusForbidden, gates.DeniedMessage)
	}

	var req validation.PostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}

	report := h.Validator.ValidatePost(req)
	if !report.Ok() {
		return c.JSON(http.StatusBadRequest, report)
	}

	post := models.Post{
		Title:    req.Title,
		Content:  h.sanitize(req.Content),
		AuthorID: user.ID,
	}
	if err := h.DB.Create(&post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create post")
	}

	h.publish(c, map[string]any{
		"type":    "post_created",
		"post_id": post.ID,
		"author":  user.Username,
	})

	return c.JSON(http.StatusCreated, "Post has been successfully created")
}

// ModifyPost updates a post after re-validating ownership beyond the
// author gate. An ownership mismatch is 403 with the sentinel message,
// never a plain 400.
func (h *PostHandler) ModifyPost(c echo.Context) error {
	user := gates.BoundUser(c)

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}

	report := h.Validator.ValidatePost(validation.PostRequest{Title: req.Title, Content: req.Content})
	if !report.Ok() {
		return c.JSON(http.StatusBadRequest, report)
	}

	post, err := h.Validator.ValidateModification(validation.ModificationContext{
		SessionUser: user,
		PostID:      c.Param("id"),
		AuthorEmail: req.Author,
	})
	if err != nil {
		if errors.Is(err, validation.ErrUnauthorizedAction) {
			return c.JSON(http.StatusForbidden, echo.Map{"detail": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": err.Error()})
	}

	post.Title = req.Title
	post.Content = h.sanitize(req.Content)
	if err := h.DB.Save(post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update post")
	}

	h.publish(c, map[string]any{
		"type":    "post_updated",
		"post_id": post.ID,
		"author":  user.Username,
	})

	return c.JSON(http.StatusAccepted, "Post updated successfully")
}

// DeletePost removes a post. The author gate already vetted ownership;
// the checks here keep the handler safe when routed without it.
func (h *PostHandler) DeletePost(c echo.Context) error {
	user := gates.BoundUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Post does not exist"})
	}

	var post models.Post
	if err := h.DB.Where("id = ?", id).First(&post).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Post does not exist"})
	}

	if user == nil || post.AuthorID != user.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"detail": validation.ErrUnauthorizedAction.Error()})
	}

	if err := h.DB.Delete(&post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete post")
	}

	h.publish(c, map[string]any{
		"type":    "post_deleted",
		"post_id": post.ID,
		"author":  user.Username,
	})

	return c.NoContent(http.StatusNoContent)
}

// ListPosts returns a page of posts, newest first.
func (h *PostHandler) ListPosts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Post{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not count posts")
	}

	var items []models.Post
	if err := h.DB.Model(&models.Post{}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list posts")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}
