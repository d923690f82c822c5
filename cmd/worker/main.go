// Worker sweeps expired sessions, passkey challenges and old audit rows on SWEEP_INTERVAL.
// When KAFKA_BROKERS and LOKI_URL are both set it also forwards telemetry events from Kafka to Loki.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	auditrepo "member-service/internal/audit/repository"
	"member-service/internal/config"
	"member-service/internal/db"
	passkeyrepo "member-service/internal/passkey/repository"
	sessionrepo "member-service/internal/session/repository"
	"member-service/internal/sweeper"
	"member-service/internal/telemetry/consumer"
	"member-service/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
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

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	audits := auditrepo.NewPostgresRepository(pool)
	sw := sweeper.New(
		sweeper.Target{Name: "sessions", Expirer: sessionrepo.NewPostgresRepository(pool)},
		sweeper.Target{Name: "passkey challenges", Expirer: passkeyrepo.NewPostgresChallengeStore(pool)},
		sweeper.Target{Name: "audit logs", Expirer: sweeper.ExpirerFunc(audits.DeleteBefore), Retention: cfg.AuditRetentionPeriod()},
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("worker: sweeping every %s", cfg.SweepEvery())
		sw.Run(ctx, cfg.SweepEvery())
	}()

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) > 0 && cfg.LokiURL != "" {
		sink, err := loki.NewClient(cfg.LokiURL)
		if err != nil {
			log.Fatalf("worker: %v", err)
		}
		reader := consumer.NewKafkaReader(brokers, cfg.TelemetryKafkaTopic, cfg.KafkaGroupID)
		defer reader.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("worker: consuming from %s (group %s), pushing to %s", cfg.TelemetryKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
			n := consumer.New(reader, sink).Run(ctx)
			log.Printf("worker: forwarded %d telemetry events", n)
		}()
	}

	wg.Wait()
	log.Println("worker: stopped")
}
