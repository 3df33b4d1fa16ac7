// authctl is the operator tool for the auth engine: breach version bumps,
// session inspection and revocation, audit queries, and smoke logins against
// a running database. It assembles the same stack a request-serving caller
// embeds, so configuration problems surface here before they surface there.
// Requires DATABASE_URL and AUTH_TOKEN_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"auth-session-engine/internal/audit"
	auditrepo "auth-session-engine/internal/audit/repository"
	authservice "auth-session-engine/internal/auth/service"
	breachrepo "auth-session-engine/internal/breach/repository"
	breachservice "auth-session-engine/internal/breach/service"
	"auth-session-engine/internal/cache"
	"auth-session-engine/internal/config"
	credrepo "auth-session-engine/internal/credential/repository"
	credservice "auth-session-engine/internal/credential/service"
	"auth-session-engine/internal/db"
	"auth-session-engine/internal/logging"
	tokenrepo "auth-session-engine/internal/refreshtoken/repository"
	tokenservice "auth-session-engine/internal/refreshtoken/service"
	"auth-session-engine/internal/security"
	sessiondomain "auth-session-engine/internal/session/domain"
	sessionrepo "auth-session-engine/internal/session/repository"
	sessionservice "auth-session-engine/internal/session/service"
	"auth-session-engine/internal/telemetry"
	otelsetup "auth-session-engine/internal/telemetry/otel"
)

const usage = `Usage: authctl -op <operation> [flags]

Operations:
  bump      advance a breach version; -scope global (default) or a user id
  sessions  list a user's active sessions; -user
  revoke    revoke one session and its refresh token; -session [-reason]
  audit     list a user's audit events, newest first; -user [-limit] [-offset]
  login     smoke-test login printing the issued pair; -email -password
  refresh   rotate a refresh secret and print the new pair; -secret
  verify    check an access token and print its claims; -token
`

func main() {
	var (
		op       = flag.String("op", "", "Operation: bump, sessions, revoke, audit, login, refresh, verify")
		scope    = flag.String("scope", "global", "Bump scope: global or a user id")
		user     = flag.String("user", "", "User id for sessions and audit")
		session  = flag.String("session", "", "Session id for revoke")
		reason   = flag.String("reason", sessiondomain.ReasonAdminRevoked, "Revocation reason")
		email    = flag.String("email", "", "Email for login")
		password = flag.String("password", "", "Password for login")
		secret   = flag.String("secret", "", "Refresh secret for refresh")
		token    = flag.String("token", "", "Access token for verify")
		limit    = flag.Int("limit", 50, "Audit page size")
		offset   = flag.Int("offset", 0, "Audit page offset")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *op == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("authctl: config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("authctl: DATABASE_URL is required")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("authctl: logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "authctl", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("authctl: telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() { _ = providers.Shutdown(ctx) }()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("authctl: db: %v", err)
	}
	defer pool.Close()

	creds := credrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	tokens := tokenrepo.NewPostgresRepository(pool)
	breaches := breachrepo.NewPostgresRepository(pool)
	auditEvents := auditrepo.NewPostgresRepository(pool)

	var reader breachservice.VersionReader
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		reader = cache.NewVersions(client, breaches, cfg.VersionCacheTTL(), logger)
	}
	breachMgr := breachservice.NewManager(breaches, reader, cfg.BreachGracePeriod(), logger)

	key, err := cfg.SigningKey()
	if err != nil {
		log.Fatalf("authctl: signing key: %v", err)
	}
	issuer, err := security.NewTokenIssuer(key, cfg.TokenIssuer, cfg.AccessTTL(), breachMgr)
	if err != nil {
		log.Fatalf("authctl: token issuer: %v", err)
	}

	sinks := []audit.Sink{audit.NewZapSink(logger)}
	if kafkaSink := audit.NewKafkaSink(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic); kafkaSink != nil {
		defer func() { _ = kafkaSink.Close() }()
		sinks = append(sinks, kafkaSink)
	} else {
		// Without Kafka nothing else persists events, so write them here.
		sinks = append(sinks, audit.NewPostgresSink(auditEvents))
	}
	if cfg.OTLPEndpoint != "" {
		if otelSink := audit.NewOTelSink(providers.LoggerProvider); otelSink != nil {
			sinks = append(sinks, otelSink)
		}
	}
	dispatcher := audit.NewDispatcher(cfg.AuditBufferSize, logger, sinks...)
	defer dispatcher.Close()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("authctl: metrics: %v", err)
	}

	verifier := credservice.NewVerifier(creds, security.NewHasher(cfg.BcryptCost), dispatcher,
		cfg.LockoutThreshold, cfg.LockoutDuration(), logger)
	registry := sessionservice.NewRegistry(sessions, dispatcher, cfg.SessionLimit, logger)
	engine := tokenservice.NewEngine(tokens, registry, breachMgr, dispatcher, cfg.RefreshTTL(), logger)

	orch := authservice.NewOrchestrator(verifier, creds, registry, engine, issuer, breachMgr,
		dispatcher, auditEvents, metrics, logger)

	switch *op {
	case "bump":
		version, err := orch.BumpBreachVersion(ctx, *scope)
		if err != nil {
			log.Fatalf("authctl: bump %s: %v", *scope, err)
		}
		fmt.Printf("Scope %s is now at version %d.\n", *scope, version)
	case "sessions":
		requireFlag(*user, "-user")
		list, err := orch.ListSessions(ctx, *user)
		if err != nil {
			log.Fatalf("authctl: list sessions: %v", err)
		}
		if len(list) == 0 {
			fmt.Println("No active sessions.")
			return
		}
		for _, s := range list {
			fmt.Printf("%s  device=%q ip=%s created=%s last_seen=%s\n",
				s.ID, s.Device, s.IPAddress,
				s.CreatedAt.Format(time.RFC3339),
				s.LastSeenAt.Format(time.RFC3339))
		}
	case "revoke":
		requireFlag(*session, "-session")
		if err := orch.RevokeSession(ctx, *session, *reason); err != nil {
			log.Fatalf("authctl: revoke %s: %v", *session, err)
		}
		fmt.Printf("Session %s revoked.\n", *session)
	case "audit":
		requireFlag(*user, "-user")
		events, err := orch.ListAuditEvents(ctx, *user, int32(*limit), int32(*offset))
		if err != nil {
			log.Fatalf("authctl: audit: %v", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events.")
			return
		}
		for _, e := range events {
			line := fmt.Sprintf("%s  %s", e.OccurredAt.Format(time.RFC3339), e.Action)
			if e.Outcome != "" {
				line += " outcome=" + e.Outcome
			}
			if e.Reason != "" {
				line += " reason=" + e.Reason
			}
			if e.SessionID != "" {
				line += " session=" + e.SessionID
			}
			fmt.Println(line)
		}
	case "login":
		requireFlag(*email, "-email")
		requireFlag(*password, "-password")
		cred, err := creds.GetByEmail(ctx, *email)
		if err != nil {
			log.Fatalf("authctl: look up %s: %v", *email, err)
		}
		if cred == nil {
			log.Fatalf("authctl: login: %v", credservice.ErrInvalidCredentials)
		}
		pair, evicted, err := orch.CreateSession(ctx, cred.ID, *password,
			authservice.DeviceInfo{Device: "authctl"})
		if err != nil {
			log.Fatalf("authctl: login: %v", err)
		}
		if evicted != nil {
			fmt.Printf("Evicted session %s (%s) to stay under the cap.\n", evicted.SessionID, evicted.Reason)
		}
		printPair(pair)
	case "refresh":
		requireFlag(*secret, "-secret")
		pair, err := orch.Refresh(ctx, *secret)
		if err != nil {
			log.Fatalf("authctl: refresh: %v", err)
		}
		printPair(pair)
	case "verify":
		requireFlag(*token, "-token")
		claims, err := orch.VerifyAccess(ctx, *token)
		if err != nil {
			log.Fatalf("authctl: verify: %v", err)
		}
		fmt.Printf("Valid. subject=%s session=%s roles=%v version=%d expires=%s\n",
			claims.Subject, claims.SessionID, claims.Roles, claims.Version,
			claims.ExpiresAt.Format(time.RFC3339))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printPair(pair *authservice.TokenPair) {
	fmt.Printf("Access token (expires %s):\n%s\n", pair.AccessExpiresAt.Format(time.RFC3339), pair.AccessToken)
	fmt.Printf("Refresh secret:\n%s\n", pair.RefreshSecret)
}

func requireFlag(value, name string) {
	if value == "" {
		log.Fatalf("authctl: %s is required for this operation", name)
	}
}
