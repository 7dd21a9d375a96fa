package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
	"github.com/arklim/social-platform-revocation/internal/infra/cache"
	"github.com/arklim/social-platform-revocation/internal/infra/config"
	kafkainfra "github.com/arklim/social-platform-revocation/internal/infra/kafka"
	"github.com/arklim/social-platform-revocation/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-revocation/internal/infra/redis"
	"github.com/arklim/social-platform-revocation/internal/infra/security"
	"github.com/arklim/social-platform-revocation/internal/infra/telemetry"
	"github.com/arklim/social-platform-revocation/internal/infra/worker"
	postgresrepo "github.com/arklim/social-platform-revocation/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-revocation/internal/repository/redis"
	"github.com/arklim/social-platform-revocation/internal/transport/http/routes"
	"github.com/arklim/social-platform-revocation/internal/usecase"
)

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	cleanup *worker.CleanupWorker
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := telemetry.NewProvider(nil)

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	var pool *pgxpool.Pool
	var audit port.AuditLog
	if cfg.Postgres.Host != "" {
		pool, err = postgresrepo.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		audit = postgresrepo.NewAuditLogRepository(pool)
		log.Info("audit log repository initialized", zap.String("host", cfg.Postgres.Host))
	} else {
		log.Warn("postgres not configured, audit entries will not be persisted")
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	hot := cache.NewHotTier(cache.HotTierOptions{MaxEntries: cfg.Revocation.HotCacheMaxEntries})
	denylist := cache.NewDenylist(cache.DenylistOptions{MaxEntries: cfg.Revocation.HotCacheMaxEntries})
	durable := redisrepo.NewDurableTier(redisClient.Client(), cfg.Redis.KeyPrefix)

	snapshots := redisrepo.NewSnapshotRepository(redisClient.Client(), cfg.Redis.SnapshotKey, cfg.Revocation.SnapshotTTL)
	if snapshot, err := snapshots.LoadLatestSnapshot(ctx); err != nil {
		log.Warn("denylist snapshot load failed", zap.Error(err))
	} else if snapshot != nil {
		if err := denylist.RestoreSnapshot(ctx, *snapshot); err != nil {
			log.Warn("denylist snapshot restore failed", zap.Error(err))
		} else {
			log.Info("denylist warm-started from snapshot",
				zap.String("snapshot_id", snapshot.SnapshotID),
				zap.Time("generated_at", snapshot.GeneratedAt),
				zap.Int("entries", denylist.Size()),
			)
		}
	}

	policy := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Revocation.DegradationPolicy))

	service, err := usecase.NewRevocationService(usecase.RevocationServiceDeps{
		Hot:        hot,
		Membership: denylist,
		Durable:    durable,
		Identity:   security.NewIdentityExtractor(nil),
		Audit:      audit,
		Events:     eventPublisher,
		Metrics:    metrics,
		Policy:     policy,
		DefaultTTL: cfg.DefaultRecordTTL(),
		Timeouts: usecase.TierTimeouts{
			Hot:        cfg.Revocation.TierTimeouts.Hot,
			Membership: cfg.Revocation.TierTimeouts.Membership,
			Durable:    cfg.Revocation.TierTimeouts.Durable,
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("init revocation service: %w", err)
	}

	cleanupWorker := worker.NewCleanupWorker(service, denylist, snapshots, cfg.Revocation.CleanupInterval, log)

	engine := routes.Register(routes.Dependencies{
		Config:     cfg,
		Logger:     log,
		Revocation: service,
	})

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		cleanup: cleanupWorker,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	go a.cleanup.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting revocation API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
