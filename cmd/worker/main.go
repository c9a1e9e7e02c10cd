package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/config"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/monthly"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/queue"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/store"
)

// Worker consumes monthly_rebuild messages and recomputes the named
// student-month aggregate from the daily records.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "hostel:rebuilds")
	}

	records := attendance.NewRepository(db.Client)
	rebuilder := monthly.NewRebuilder(records, monthly.NewStore(db.Client))

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeMonthlyRebuild {
			continue
		}
		if msg.Rebuild == nil {
			log.Printf("dropping %s message without payload", msg.Type)
			continue
		}

		job := msg.Rebuild
		if err := rebuilder.Rebuild(ctx, job.StudentID, job.Year, job.Month); err != nil {
			log.Printf("rebuild failed for student %s %d-%02d: %v", job.StudentID, job.Year, job.Month, err)
			continue
		}
		log.Printf("rebuilt aggregate for student %s %d-%02d", job.StudentID, job.Year, job.Month)
	}

	log.Println("worker stopped")
}
