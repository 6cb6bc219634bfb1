// Package bootstrap assembles the media stack shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/castingly/castingly-backend/internal/actors"
	"github.com/castingly/castingly-backend/internal/backfill"
	"github.com/castingly/castingly-backend/internal/media"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/dailey"
	"github.com/castingly/castingly-backend/pkg/db"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/logger"
	"github.com/castingly/castingly-backend/pkg/metrics"
	"github.com/castingly/castingly-backend/pkg/pubsub"
	"github.com/castingly/castingly-backend/pkg/redis"
)

const backfillLockName = "media_backfill"

// Stack holds the long-lived clients behind media ingestion and repair.
type Stack struct {
	cfg  *config.Config
	logg *logger.Logger

	Core      *dailey.Client
	Storage   *dmapi.Client
	Actors    *actors.Repository
	Runs      *backfill.RunRepository
	Publisher pubsub.EventPublisher
	PubSub    *pubsub.Client
	Metrics   *metrics.MediaMetrics
	Redis     *redis.Client
}

// NewStack wires the Core and DMAPI clients, repositories and event publisher.
// reg may be nil to skip metric registration.
func NewStack(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Stack, error) {
	if cfg == nil || dbClient == nil || redisClient == nil {
		return nil, errors.New("config, database and redis are required")
	}

	core, err := dailey.NewClient(cfg.Core, cfg.DMAPI.AppSlug)
	if err != nil {
		return nil, fmt.Errorf("dailey core client: %w", err)
	}

	tokens, err := serviceTokens(cfg, core, redisClient)
	if err != nil {
		return nil, err
	}

	storage, err := dmapi.NewClient(cfg.DMAPI, tokens, logg)
	if err != nil {
		return nil, fmt.Errorf("dmapi client: %w", err)
	}

	s := &Stack{
		cfg:       cfg,
		logg:      logg,
		Core:      core,
		Storage:   storage,
		Actors:    actors.NewRepository(dbClient.DB()),
		Runs:      backfill.NewRunRepository(dbClient.DB()),
		Publisher: pubsub.NoopPublisher{},
		Metrics:   metrics.NewMediaMetrics(reg),
		Redis:     redisClient,
	}

	if cfg.PubSub.Enabled(cfg.GCP) {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := psClient.MediaPublisher()
		if err != nil {
			_ = psClient.Close()
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		s.PubSub = psClient
		s.Publisher = publisher
	} else if logg != nil {
		logg.Info(ctx, "media events disabled, no pubsub topic configured")
	}

	return s, nil
}

func serviceTokens(cfg *config.Config, core *dailey.Client, redisClient *redis.Client) (dmapi.TokenSource, error) {
	if cfg.DMAPI.APIKey != "" {
		return dmapi.StaticToken(cfg.DMAPI.APIKey), nil
	}
	if !cfg.DMAPI.HasServiceAccount() {
		return nil, errors.New("dmapi service credential is required")
	}
	login := func(ctx context.Context) (string, time.Time, error) {
		session, err := core.Login(ctx, cfg.DMAPI.ServiceEmail, cfg.DMAPI.ServicePassword)
		if err != nil {
			return "", time.Time{}, err
		}
		return session.AccessToken, session.ExpiresAt, nil
	}
	return dmapi.NewServiceTokenProvider(login, cfg.DMAPI.TokenTTL,
		dmapi.WithSharedCache(redisClient, redisClient.ServiceTokenKey(cfg.DMAPI.AppSlug)),
	)
}

// MediaService builds the upload reconciler.
func (s *Stack) MediaService() (media.Service, error) {
	return media.NewService(media.Config{
		App:           s.cfg.DMAPI.AppSlug,
		PublicBaseURL: s.cfg.App.PublicBaseURL,
		SignedURLTTL:  s.cfg.Media.SignedURLTTL,
		Policy:        media.PolicyFromConfig(s.cfg.Media),
		Locator:       media.Locator{PublicBucket: s.cfg.DMAPI.PublicBucket, PrivateBucket: s.cfg.DMAPI.PrivateBucket},
	}, media.Deps{
		Actors:         s.Actors,
		ServiceStorage: s.Storage,
		UserStorage:    s.UserStorage,
		Publisher:      s.Publisher,
		Metrics:        s.Metrics,
		Logger:         s.logg,
	})
}

// UserStorage scopes storage calls to an end user's Core token.
func (s *Stack) UserStorage(token string) media.Storage {
	return s.Storage.As(dmapi.StaticToken(token))
}

// KeyStorage scopes storage calls to a caller-supplied media API key.
func (s *Stack) KeyStorage(apiKey string) backfill.Storage {
	return s.Storage.As(dmapi.StaticToken(apiKey))
}

// BackfillService builds the metadata repair job guarded by a Redis lock.
func (s *Stack) BackfillService() (backfill.Service, error) {
	lock, err := redis.NewRedisLock(s.Redis, s.Redis.LockKey(backfillLockName), s.cfg.Backfill.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("backfill lock: %w", err)
	}
	return backfill.NewService(*s.cfg, backfill.Deps{
		Storage:   s.Storage,
		Actors:    s.Actors,
		Lock:      lock,
		Runs:      s.Runs,
		Publisher: s.Publisher,
		Metrics:   s.Metrics,
		Logger:    s.logg,
	})
}

// Close releases the Pub/Sub client when one was opened.
func (s *Stack) Close() error {
	if s.PubSub == nil {
		return nil
	}
	return s.PubSub.Close()
}
