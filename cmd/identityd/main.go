package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Seklfreak/cool-chat/internal/logger"
	"github.com/Seklfreak/cool-chat/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// identityd issues anonymous session credentials: a fresh opaque user id
// plus a signed token. Clients treat it as the external identity service.
func main() {
	_ = godotenv.Load()

	dev := os.Getenv("APP_ENV") != "production"
	log, err := logger.New(dev)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	secret := os.Getenv("IDENTITY_JWT_SECRET")
	if secret == "" {
		log.Fatal("IDENTITY_JWT_SECRET is required")
	}
	port := os.Getenv("IDENTITY_PORT")
	if port == "" {
		port = "8081"
	}
	perMinute := 60
	if v := os.Getenv("IDENTITY_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perMinute = n
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(middleware.NewIPRateLimiter(perMinute, log).Handler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/v1/anonymous", func(c *fiber.Ctx) error {
		userID := uuid.NewString()
		claims := jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			Issuer:    "identityd",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			log.Error("token signing failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "token signing failed"})
		}
		log.Info("anonymous identity issued", zap.String("user_id", userID))
		return c.JSON(fiber.Map{"user_id": userID, "token": token})
	})

	errs := make(chan error, 1)
	go func() {
		log.Info("identityd listening", zap.String("port", port))
		errs <- app.Listen(":" + port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		log.Fatal("server error", zap.Error(err))
	case s := <-sig:
		log.Info("signal received", zap.String("signal", s.String()))
	}
	if err := app.Shutdown(); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
