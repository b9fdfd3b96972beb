package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"depositflow/auth"
	"depositflow/db"
	"depositflow/protection"
	"depositflow/scheme"
	"depositflow/tenancy"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Local development convenience; ignored when no .env file exists.
	_ = godotenv.Load()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	authService := auth.NewService(auth.NewRepository(pool), jwtSecret)
	schemeService := scheme.NewService(scheme.NewRepository(pool))
	protectionService := protection.NewService(
		pool,
		protection.NewRepository(pool),
		tenancy.NewRepository(pool),
		scheme.NewRepository(pool),
	)

	server := NewServer(authService, schemeService, protectionService, logger)

	addr := ":" + os.Getenv("PORT")
	if addr == ":" {
		addr = ":8080"
	}

	logger.WithField("addr", addr).Info("deposit protection API listening")
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		logger.WithError(err).Fatal("http server stopped")
	}
}
