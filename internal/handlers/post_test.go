package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/gates"
	"github.com/hsaleh/blog_platform/internal/models"
	"github.com/hsaleh/blog_platform/internal/mykafka"
	"github.com/hsaleh/blog_platform/internal/validation"
)

type postEnv struct {
	E  *echo.Echo
	DB *gorm.DB
	H  *PostHandler
}

func newPostEnv(t *testing.T) *postEnv {
	db := InitTestDB(t)
	return &postEnv{
		E:  echo.New(),
		DB: db,
		H: &PostHandler{
			DB:        db,
			Validator: validation.New(db),
			Producer:  &mykafka.Producer{},
			Sanitizer: bluemonday.StrictPolicy(),
		},
	}
}

func (env *postEnv) createPostUser(t *testing.T, email string) *models.User {
	user := models.User{
		Username:     email,
		Email:        email,
		PasswordHash: "irrelevant",
		IsActive:     true,
	}
	require.NoError(t, env.DB.Create(&user).Error)
	return &user
}

func TestCreatePost(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	rec, c := doJSON(env.E, http.MethodPost, "/posts/create", map[string]string{
		"title":   "Hello World",
		"content": "first post",
	})
	c.Set(gates.UserContextKey, user)

	require.NoError(t, env.H.CreatePost(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var post models.Post
	require.NoError(t, env.DB.Where("author_id = ?", user.ID).First(&post).Error)
	require.Equal(t, "Hello World", post.Title)
	require.Equal(t, "hello-world", post.Slug)
	require.False(t, post.UpdatedAt.IsZero())
}

func TestCreatePostSanitizesContent(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	rec, c := doJSON(env.E, http.MethodPost, "/posts/create", map[string]string{
		"title":   "Hello World",
		"content": `hello <script>alert("x")</script>world`,
	})
	c.Set(gates.UserContextKey, user)

	require.NoError(t, env.H.CreatePost(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var post models.Post
	require.NoError(t, env.DB.Where("author_id = ?", user.ID).First(&post).Error)
	require.NotContains(t, post.Content, "<script>")
}

func TestCreatePostInvalid(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	cases := []map[string]string{
		{"title": "123456", "content": "body"},
		{"title": "", "content": "body"},
		{"title": "Hello", "content": ""},
	}
	for _, payload := range cases {
		rec, c := doJSON(env.E, http.MethodPost, "/posts/create", payload)
		c.Set(gates.UserContextKey, user)
		require.NoError(t, env.H.CreatePost(c))
		require.Equal(t, http.StatusBadRequest, rec.Code, "payload %v", payload)
	}

	var count int64
	env.DB.Model(&models.Post{}).Count(&count)
	require.Zero(t, count)
}

func TestModifyPostRecomputesSlug(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	post := models.Post{Title: "Hello World", Content: "body", AuthorID: user.ID}
	require.NoError(t, env.DB.Create(&post).Error)
	require.Equal(t, "hello-world", post.Slug)

	rec, c := doJSON(env.E, http.MethodPut, "/posts/"+post.ID.String(), map[string]string{
		"title":   "Fresh Title",
		"content": "updated body",
		"author":  user.Email,
	})
	c.SetParamNames("id")
	c.SetParamValues(post.ID.String())
	c.Set(gates.UserContextKey, user)

	require.NoError(t, env.H.ModifyPost(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var msg string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.Equal(t, "Post updated successfully", msg)

	var updated models.Post
	require.NoError(t, env.DB.Where("id = ?", post.ID).First(&updated).Error)
	require.Equal(t, "Fresh Title", updated.Title)
	require.Equal(t, "fresh-title", updated.Slug)
	require.Equal(t, user.ID, updated.AuthorID)
}

func TestModifyPostByNonAuthor(t *testing.T) {
	env := newPostEnv(t)
	author := env.createPostUser(t, "author@example.com")
	other := env.createPostUser(t, "other@example.com")

	post := models.Post{Title: "Hello World", Content: "body", AuthorID: author.ID}
	require.NoError(t, env.DB.Create(&post).Error)

	rec, c := doJSON(env.E, http.MethodPut, "/posts/"+post.ID.String(), map[string]string{
		"title":   "Hijacked",
		"content": "changed",
		"author":  other.Email,
	})
	c.SetParamNames("id")
	c.SetParamValues(post.ID.String())
	c.Set(gates.UserContextKey, other)

	require.NoError(t, env.H.ModifyPost(c))
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Unauthorized action detected.", resp["detail"])

	var unchanged models.Post
	require.NoError(t, env.DB.Where("id = ?", post.ID).First(&unchanged).Error)
	require.Equal(t, "Hello World", unchanged.Title)
}

func TestDeletePost(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	post := models.Post{Title: "Hello World", Content: "body", AuthorID: user.ID}
	require.NoError(t, env.DB.Create(&post).Error)

	rec, c := doJSON(env.E, http.MethodDelete, "/posts/"+post.ID.String(), nil)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.String())
	c.Set(gates.UserContextKey, user)

	require.NoError(t, env.H.DeletePost(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	env.DB.Model(&models.Post{}).Count(&count)
	require.Zero(t, count)
}

func TestDeletePostByNonAuthor(t *testing.T) {
	env := newPostEnv(t)
	author := env.createPostUser(t, "author@example.com")
	other := env.createPostUser(t, "other@example.com")

	post := models.Post{Title: "Hello World", Content: "body", AuthorID: author.ID}
	require.NoError(t, env.DB.Create(&post).Error)

	rec, c := doJSON(env.E, http.MethodDelete, "/posts/"+post.ID.String(), nil)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.String())
	c.Set(gates.UserContextKey, other)

	require.NoError(t, env.H.DeletePost(c))
	require.Equal(t, http.StatusForbidden, rec.Code)

	var count int64
	env.DB.Model(&models.Post{}).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestDeleteMissingPost(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	rec, c := doJSON(env.E, http.MethodDelete, "/posts/8b9ec95c-0000-0000-0000-000000000000", nil)
	c.SetParamNames("id")
	c.SetParamValues("8b9ec95c-0000-0000-0000-000000000000")
	c.Set(gates.UserContextKey, user)

	require.NoError(t, env.H.DeletePost(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPosts(t *testing.T) {
	env := newPostEnv(t)
	user := env.createPostUser(t, "author@example.com")

	for _, title := range []string{"First Post", "Second Post", "Third Post"} {
		post := models.Post{Title: title, Content: "body", AuthorID: user.ID}
		require.NoError(t, env.DB.Create(&post).Error)
	}

	rec, c := doJSON(env.E, http.MethodGet, "/posts", nil)
	require.NoError(t, env.H.ListPosts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Post  `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	require.EqualValues(t, 3, resp.Meta["total"])
}
