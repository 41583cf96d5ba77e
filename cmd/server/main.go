package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hsaleh/blog_platform/internal/config"
	"github.com/hsaleh/blog_platform/internal/es"
	"github.com/hsaleh/blog_platform/internal/gates"
	"github.com/hsaleh/blog_platform/internal/handlers"
	"github.com/hsaleh/blog_platform/internal/logging"
	"github.com/hsaleh/blog_platform/internal/mykafka"
	"github.com/hsaleh/blog_platform/internal/tokens"
	httpserver "github.com/hsaleh/blog_platform/internal/transport/http"
	"github.com/hsaleh/blog_platform/internal/validation"
)

func main() {
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(logging.New(configuration.LOG_LEVEL))

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	tokenService := &tokens.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
	validator := validation.New(db)

	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB:        db,
			Tokens:    tokenService,
			Validator: validator,
			Producer:  prod,
		},
		PostHandler: &handlers.PostHandler{
			DB:        db,
			Validator: validator,
			Producer:  prod,
			Sanitizer: bluemonday.StrictPolicy(),
		},
		SearchHandler: &handlers.SearchHandler{ES: esClient, Index: "posts"},
		Gates:         &gates.Middleware{Gate: &gates.Gate{DB: db, Tokens: tokenService}},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
