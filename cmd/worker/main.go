package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studentreg/internal/avatar"
	"studentreg/internal/config"
	"studentreg/internal/queue"
	"studentreg/internal/store"
	"studentreg/internal/student"
)

// Worker consumes avatar jobs and inlines the referenced image so
// records stop depending on the external avatar service.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "studentreg:jobs")
	}

	storage, err := student.NewStore(db.Client)
	if err != nil {
		log.Fatalf("schema init failed: %v", err)
	}
	fetcher := avatar.NewFetcher()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for avatar jobs...")
	for msg := range messages {
		if msg.Type != "avatar.resolve" {
			continue
		}

		var job student.AvatarJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Printf("bad job payload: %v", err)
			continue
		}
		log.Printf("resolving avatar for %s/%s", job.Kind, job.ID)

		data, contentType, err := fetcher.FetchBytes(ctx, job.URL)
		if err != nil {
			log.Printf("avatar fetch failed for %s/%s: %v", job.Kind, job.ID, err)
			continue
		}

		switch job.Kind {
		case "students":
			err = storage.SetStudentAvatar(ctx, job.ID, data)
		case "contacts":
			err = storage.SetContactAvatar(ctx, job.ID, data)
		default:
			log.Printf("unknown record kind %q", job.Kind)
			continue
		}
		if err != nil {
			log.Printf("avatar store failed for %s/%s: %v", job.Kind, job.ID, err)
			continue
		}
		log.Printf("avatar inlined for %s/%s (%s, %d bytes)", job.Kind, job.ID, contentType, len(data))

		time.Sleep(10 * time.Millisecond)
	}

	log.Println("worker stopped")
}
