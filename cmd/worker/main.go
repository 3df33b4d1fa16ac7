// Worker consumes audit events from Kafka and persists them to Postgres,
// committing offsets only after the write so delivery is at-least-once.
// Set DATABASE_URL and KAFKA_BROKERS; LOKI_URL additionally mirrors events to Loki.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-session-engine/internal/audit/domain"
	"auth-session-engine/internal/audit/repository"
	"auth-session-engine/internal/config"
	"auth-session-engine/internal/db"
	"auth-session-engine/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.AuditKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	topic := cfg.AuditKafkaTopic
	if topic == "" {
		topic = "auth.audit"
	}
	groupID := cfg.AuditKafkaGroupID
	if groupID == "" {
		groupID = "auth-audit-worker"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer pool.Close()
	events := repository.NewPostgresRepository(pool)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
	})
	defer reader.Close()

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var e domain.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			// Malformed payloads would block the partition forever; skip them.
			log.Printf("worker: dropping malformed event at offset %d: %v", msg.Offset, err)
			commit(ctx, reader, msg)
			continue
		}

		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		err = events.Insert(writeCtx, &e)
		if err == nil && cfg.LokiURL != "" {
			if lerr := loki.PushEventJSON(writeCtx, cfg.LokiURL, msg.Value); lerr != nil {
				log.Printf("worker: loki push failed: %v", lerr)
			}
		}
		writeCancel()
		if err != nil {
			// Leave the offset uncommitted so the event is redelivered.
			log.Printf("worker: insert audit event %s: %v", e.ID, err)
			continue
		}

		commit(ctx, reader, msg)
	}
}

func commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		log.Printf("worker: commit offset %d: %v", msg.Offset, err)
	}
}
