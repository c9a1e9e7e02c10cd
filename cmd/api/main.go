package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/config"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/httpapi"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/httpmiddleware"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/leave"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/monthly"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/queue"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/report"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("db not reachable: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "hostel:rebuilds")
	}

	loc := cfg.Location()

	records := attendance.NewRepository(db.Client)
	rosterRepo := roster.NewRepository(db.Client)
	leaveRepo := leave.NewRepository(db.Client)
	monthlyStore := monthly.NewStore(db.Client)

	syncer := monthly.NewSynchronizer(monthlyStore)
	rebuilder := monthly.NewRebuilder(records, monthlyStore)
	// The window gate keys off the clock's location, so pin it to the
	// configured hostel timezone rather than the host's local zone.
	att := attendance.NewService(records, syncer, jobs, func() time.Time {
		return time.Now().In(loc)
	})
	merger := attendance.NewMerger(rosterRepo, records, leaveRepo, loc)
	reports := report.NewService(rosterRepo, records, monthlyStore, merger, redisClient, cfg.KPICacheTTL)

	handler := httpapi.New(att, merger, rosterRepo, records, reports, monthlyStore, rebuilder, httpapi.Config{
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
		AccessTTL:     cfg.AccessTTL,
		Env:           cfg.Env,
		Location:      loc,
	}, nil)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewIPRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPerMin, "/healthz", "/metrics").GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	handler.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
