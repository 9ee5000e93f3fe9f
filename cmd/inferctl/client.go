package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/morezero/inference-client/internal/config"
	"github.com/morezero/inference-client/pkg/db"
	"github.com/morezero/inference-client/pkg/deploy"
	"github.com/morezero/inference-client/pkg/events"
	"github.com/morezero/inference-client/pkg/resource"
	"github.com/morezero/inference-client/pkg/sigcache"
	"github.com/morezero/inference-client/pkg/transport"
)

const logPrefix = "inferctl:client"

// session holds the collaborators one command invocation shares.
type session struct {
	cfg      *config.Config
	deps     resource.Deps
	defaults resource.Defaults
	closers  []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newSession wires transport, signature cache and retry driver from cfg.
func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	if err := cfg.ValidateForClient(); err != nil {
		return nil, err
	}
	s := &session{
		cfg:      cfg,
		defaults: resource.Defaults{UserID: cfg.UserID, AppID: cfg.AppID},
	}
	driver := &deploy.Driver{
		Ceiling: cfg.DeployCeiling,
		Metrics: deploy.NewMetrics("inference", prometheus.DefaultRegisterer),
	}

	switch cfg.Transport {
	case config.TransportGRPC:
		client, err := transport.DialGRPC(cfg.GRPCAddr, &transport.GRPCClientOpts{PAT: cfg.PAT, Insecure: cfg.GRPCInsecure})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.deps.Transport = client
	default:
		nc, err := transport.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { nc.Drain() })
		s.deps.Transport = transport.NewCommsClient(nc, &transport.CommsClientOpts{
			SubjectPrefix: cfg.SubjectPrefix,
			PAT:           cfg.PAT,
			Timeout:       cfg.RequestTimeout,
		})
		driver.Publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.SubjectPrefix})
	}
	s.deps.Driver = driver

	cache, err := s.openCache(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.deps.Cache = cache
	return s, nil
}

func (s *session) openCache(ctx context.Context) (sigcache.Cache, error) {
	cfg := s.cfg
	switch cfg.SignatureCache {
	case config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		c, err := sigcache.NewRedisFromURL(cfg.RedisURL, cfg.SignatureCacheTTL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { c.Close() })
		return c, nil
	case config.CachePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return nil, fmt.Errorf("load migrations: %w", err)
			}
			if _, err := db.Migrate(ctx, pool, migrations); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		ok, err := db.SchemaApplied(ctx, pool)
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.Warn(fmt.Sprintf("%s - signature cache schema missing, falling back to memory; run 'inferctl migrate up'", logPrefix))
			return sigcache.NewMemory(cfg.SignatureCacheTTL, nil), nil
		}
		return sigcache.NewPostgres(db.NewSignatureRepository(pool), cfg.SignatureCacheTTL, nil), nil
	}
	return sigcache.NewMemory(cfg.SignatureCacheTTL, nil), nil
}
