package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/gates"
	"github.com/hsaleh/blog_platform/internal/handlers"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	PostHandler   *handlers.PostHandler
	SearchHandler *handlers.SearchHandler
	Gates         *gates.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("", d.AuthHandler.Login, d.Gates.RequireActiveUser)
	auth.POST("/logout", d.AuthHandler.LogOut, d.Gates.RequireAuthenticated)
	auth.POST("/refresh", d.AuthHandler.Refresh, d.Gates.RequireRefreshToken)

	posts := e.Group("/posts")
	posts.GET("", d.PostHandler.ListPosts)
	posts.GET("/search", d.SearchHandler.Search)
	posts.POST("/create", d.PostHandler.CreatePost,
		d.Gates.RequireAuthenticated, d.Gates.RequireActiveUser)
	posts.PUT("/:id", d.PostHandler.ModifyPost,
		d.Gates.RequireAuthenticated, d.Gates.RequireActiveUser, d.Gates.RequireAuthor)
	posts.DELETE("/:id", d.PostHandler.DeletePost,
		d.Gates.RequireAuthenticated, d.Gates.RequireActiveUser, d.Gates.RequireAuthor)
}
