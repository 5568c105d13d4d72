package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/database"
	kafkainfra "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/kafka"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/logger"
	redisinfra "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/redis"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/telemetry"
	postgresrepo "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository/postgres"
	redisrepo "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository/redis"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/middleware"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/transport/http/routes"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	consumer *kafkainfra.Consumer
	tracer   *telemetry.Tracing
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := telemetry.StartTracing(ctx, cfg.Telemetry, cfg.App.Env, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.tracer = tp
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	people := postgresrepo.NewRepositories(pool).People
	bucketStore := redisrepo.NewTokenBucketRepository(redisClient.Client(), "")
	codeStore := redisrepo.NewShortCodeRepository(redisClient.Client())

	buckets, err := newBuckets(cfg.Buckets, bucketStore)
	if err != nil {
		a.close()
		return nil, err
	}

	eventPublisher := a.newEventPublisher(cfg)
	authMetrics := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	if err := prometheus.DefaultRegisterer.Register(redisinfra.NewPoolCollector("auth", redisClient)); err != nil {
		log.Warn("redis pool metrics disabled", zap.Error(err))
	}

	sessions, err := security.NewJWTSessionIssuer(cfg.Secret.JWTKey, cfg.Secret.SessionTTL, cfg.App.Name)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init session issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.DefaultArgon2Config())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	generators, err := security.NewConfirmationGenerators(cfg.Secret.SigningKey, map[domain.TokenKind]int{
		domain.TokenKindSubscription: cfg.Tokens.SubscriptionDays,
		domain.TokenKindAddEmail:     cfg.Tokens.AddEmailDays,
		domain.TokenKindMergeAccount: cfg.Tokens.MergeAccountDays,
		domain.TokenKindInvitation:   cfg.Tokens.InvitationDays,
		domain.TokenKindConnection:   cfg.Tokens.ConnectionDays,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init confirmation tokens: %w", err)
	}

	shortCodes, err := usecase.NewShortCodeGenerator(cfg.ShortCode, codeStore, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init short code generator: %w", err)
	}

	loginCodes, err := usecase.NewLoginCodeService(people, shortCodes, usecase.LoginCodeBuckets{
		SendCodeEmail: buckets.sendCodeEmail,
		SendCodeIP:    buckets.sendCodeIP,
		CheckCode:     buckets.checkCode,
	}, sessions, eventPublisher, authMetrics, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init login code service: %w", err)
	}

	passwordLogin, err := usecase.NewPasswordLoginService(people, hasher, sessions, buckets.passwordLogin, eventPublisher, authMetrics, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init password login service: %w", err)
	}

	confirmation, err := usecase.NewConfirmationService(generators, people, eventPublisher, authMetrics, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init confirmation service: %w", err)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ConsumerGroup != "" {
		handler := kafkainfra.NewSaltRotationConsumer(confirmation, log)
		consumer, err := kafkainfra.NewConsumer(cfg.Kafka, []string{kafkainfra.EventSessionsRevoked}, handler, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init kafka consumer: %w", err)
		}
		a.consumer = consumer
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		IPBucket:    buckets.httpIP,
		AuthMetrics: authMetrics,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			LoginCodes:    loginCodes,
			PasswordLogin: passwordLogin,
			Tokens:        confirmation,
		},
	})

	return a, nil
}

type bucketSet struct {
	sendCodeEmail *usecase.TokenBucket
	sendCodeIP    *usecase.TokenBucket
	checkCode     *usecase.TokenBucket
	passwordLogin *usecase.TokenBucket
	httpIP        *usecase.TokenBucket
}

func newBuckets(cfg config.BucketSettings, store port.TokenBucketStore) (bucketSet, error) {
	var (
		set bucketSet
		err error
	)

	for _, b := range []struct {
		name   string
		policy config.BucketPolicy
		dst    **usecase.TokenBucket
	}{
		{"SendLoginEmail", cfg.SendCodeEmail, &set.sendCodeEmail},
		{"SendLoginIP", cfg.SendCodeIP, &set.sendCodeIP},
		{"CheckShortCode", cfg.CheckCode, &set.checkCode},
		{"PasswordLogin", cfg.PasswordLogin, &set.passwordLogin},
		{"HTTPIP", cfg.HTTPIP, &set.httpIP},
	} {
		*b.dst, err = usecase.NewTokenBucketFromPolicy(b.name, b.policy, store)
		if err != nil {
			return bucketSet{}, fmt.Errorf("init bucket %s: %w", b.name, err)
		}
	}

	return set, nil
}

func (a *Application) newEventPublisher(cfg *config.AppConfig) port.EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}

	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				serverErrCh <- fmt.Errorf("run kafka consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases every backend in reverse order of acquisition. It is safe on a partially built Application.
func (a *Application) close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("failed to close kafka consumer", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
