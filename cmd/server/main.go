package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/mailer"
	"github.com/ignite/newsletter/internal/newsletter"
	"github.com/ignite/newsletter/internal/settings"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		logger.Println("[config] DATABASE_URL env override active")
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		logger.Fatalf("Pre-flight check FAILED: %v", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Fatalf("Database is unreachable: %v", err)
	}
	cancelPing()

	// Redis-backed settings store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	settingsStore := settings.NewRedisStore(redisClient)

	// Mail sender
	var sender mailer.Sender
	switch cfg.Mail.Provider {
	case "ses":
		sender, err = mailer.NewSESSender(context.Background(), cfg.Mail)
		if err != nil {
			logger.Fatalf("Failed to initialize SES sender: %v", err)
		}
	case "smtp":
		sender = mailer.NewSMTPSender(cfg.Mail)
	default:
		logger.Fatalf("Unknown mail provider %q (want \"ses\" or \"smtp\")", cfg.Mail.Provider)
	}

	manager := newsletter.NewManager(
		newsletter.NewStore(db),
		sender,
		mailer.NewTemplates(),
		settingsStore,
		logger,
		newsletter.Options{
			BaseURL:          cfg.Server.BaseURL,
			VerificationPath: cfg.Newsletter.VerificationPath,
			ImportFlushSize:  cfg.Newsletter.ImportFlushSize,
			SweepLimit:       cfg.Newsletter.SweepLimit,
			SweepOnRegister:  cfg.Newsletter.SweepOnRegister,
		},
	)
	handlers := newsletter.NewHandlers(manager, logger)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.BaseURL, "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		handlers.RegisterAdminRoutes(r)
	})
	handlers.RegisterPublicRoutes(r, cfg.Newsletter.VerificationPath)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	go func() {
		logger.Printf("Newsletter server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Shutdown error: %v", err)
	}
	db.Close()
	redisClient.Close()
}
