package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"member-service/internal/audit"
	auditrepo "member-service/internal/audit/repository"
	"member-service/internal/config"
	"member-service/internal/db"
	"member-service/internal/db/migrate"
	healthhandler "member-service/internal/health/handler"
	identityrepo "member-service/internal/identity/repository"
	identityservice "member-service/internal/identity/service"
	"member-service/internal/passkey/ceremony"
	passkeyrepo "member-service/internal/passkey/repository"
	passkeyservice "member-service/internal/passkey/service"
	"member-service/internal/platform/rbac"
	"member-service/internal/policy/engine"
	"member-service/internal/security"
	"member-service/internal/server"
	"member-service/internal/server/interceptors"
	sessionrepo "member-service/internal/session/repository"
	"member-service/internal/telemetry"
	telemetryotel "member-service/internal/telemetry/otel"
	"member-service/internal/telemetry/producer"
	userrepo "member-service/internal/user/repository"
)

const serviceName = "member-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}

	tokens, err := security.NewTokenIssuer([]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret), cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	pepper := security.NewPepperHasher(cfg.Pepper)
	hasher := security.NewHasher(cfg.BcryptCost)

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	emitter, err := buildEmitter(providers, kafkaProducer)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	users := userrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	audits := auditrepo.NewPostgresRepository(pool)
	auditLogger := audit.NewLogger(audits, interceptors.ClientIP).WithMirror(emitter)

	authSvc := identityservice.NewAuthService(
		users,
		identityrepo.NewPostgresRepository(pool),
		sessions,
		db.NewTransactor(pool),
		hasher,
		pepper,
		tokens,
		auditLogger,
	)

	challenges, closeChallenges, err := openChallengeStore(ctx, cfg, pool)
	if err != nil {
		log.Fatalf("challenge store: %v", err)
	}
	defer closeChallenges()
	verifier, err := ceremony.New(ceremony.Config{
		RPID:          cfg.WebAuthnRPID,
		RPDisplayName: cfg.WebAuthnRPName,
		Origins:       cfg.WebAuthnOrigins(),
		Timeout:       cfg.ChallengeTTL(),
	})
	if err != nil {
		log.Fatalf("webauthn: %v", err)
	}
	passkeySvc := passkeyservice.NewPasskeyService(
		users,
		passkeyrepo.NewPostgresCredentialRepository(pool),
		challenges,
		verifier,
		pepper,
		authSvc,
		auditLogger,
		passkeyservice.Options{MaxPerOwner: cfg.MaxPasskeysPerOwner, ChallengeTTL: cfg.ChallengeTTL()},
	)

	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	checker := healthhandler.NewChecker(pool, policy)

	s := server.NewServer(
		server.Options{Tokens: tokens, Sessions: sessions, Audit: auditLogger, Telemetry: emitter},
		server.Deps{
			Auth:     authSvc,
			Guard:    rbac.NewGuard(policy, users),
			Passkeys: passkeySvc,
			Health:   checker,
			Users:    users,
			Sessions: sessions,
			Audits:   audits,
		},
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	var ops *http.Server
	if cfg.HTTPAddr != "" {
		ops = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           healthhandler.NewRouter(checker),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("ops server listening on %s", cfg.HTTPAddr)
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("ops serve: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = ops.Shutdown(shutdownCtx)
		cancel()
	}
	s.GracefulStop()
	log.Println("gRPC server stopped")

	// Let in-flight async emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
}

// buildEmitter fans events out to the OTel log pipeline, the event counter and, when
// configured, Kafka.
func buildEmitter(p *telemetryotel.Providers, kafkaProducer *producer.KafkaProducer) (telemetry.EventEmitter, error) {
	counter, err := telemetryotel.NewEventCounter(p.MeterProvider)
	if err != nil {
		return nil, err
	}
	fan := telemetry.Fanout{telemetryotel.NewEventEmitter(p.LoggerProvider), counter}
	if kafkaProducer != nil {
		fan = append(fan, kafkaProducer)
	}
	return fan, nil
}

func openChallengeStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (passkeyservice.ChallengeStore, func(), error) {
	if cfg.ChallengeStore != config.ChallengeStoreRedis {
		return passkeyrepo.NewPostgresChallengeStore(pool), func() {}, nil
	}
	cli, err := passkeyrepo.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("passkey challenges stored in redis")
	return passkeyrepo.NewRedisChallengeStore(cli), func() { _ = cli.Close() }, nil
}
