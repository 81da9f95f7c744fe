// Package app builds the process object graph from config so cmd/server and
// the end-to-end suite run the same wiring.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agegate/internal/document"
	docmetrics "agegate/internal/document/metrics"
	docstore "agegate/internal/document/store"
	"agegate/internal/estimation"
	"agegate/internal/estimation/adapters"
	estmetrics "agegate/internal/estimation/metrics"
	"agegate/internal/platform/config"
	"agegate/internal/platform/metrics"
	"agegate/internal/platform/postgres"
	"agegate/internal/platform/redis"
	"agegate/internal/policy"
	httptransport "agegate/internal/transport/http"
	"agegate/internal/verification"
	"agegate/internal/verification/handler"
	vmetrics "agegate/internal/verification/metrics"
	"agegate/pkg/domain"
	"agegate/pkg/platform/events"
	"agegate/pkg/platform/events/publisher"
	"agegate/pkg/platform/events/publishers/kafka"
	eventmemory "agegate/pkg/platform/events/store/memory"
	eventpg "agegate/pkg/platform/events/store/postgres"
)

const (
	kafkaPartitions  = 3
	kafkaReplication = 1
)

// App is the running object graph.
type App struct {
	Router        http.Handler
	Verifications *verification.Service
	Policy        policy.Policy
	// Camera is set in scripted mode so demos and tests can change the script.
	Camera *adapters.ScriptedCamera

	logger    *slog.Logger
	publisher *publisher.Publisher
	closers   []func() error
}

// New wires every component. On error everything already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *App, err error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pol, err := BuildPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	a.Policy = pol

	lane, err := domain.ParseLaneID(cfg.Server.LaneID)
	if err != nil {
		return nil, fmt.Errorf("lane id: %w", err)
	}
	hashKey := []byte(cfg.Events.HashKey)
	health := map[string]httptransport.HealthCheck{}

	var db *sql.DB
	if cfg.Document.PostgresDSN != "" && (cfg.Document.Store == "postgres" || cfg.Events.Persist) {
		db, err = postgres.Open(ctx, cfg.Document.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		health["postgres"] = db.PingContext
	}

	registry, err := a.buildRegistry(ctx, cfg, db, health)
	if err != nil {
		return nil, err
	}
	lookup := document.NewService(registry, cfg.Document.Store,
		document.WithTimeout(pol.LookupTimeout),
		document.WithMetrics(docmetrics.New(reg)),
		document.WithLogger(logger),
		document.WithHashKey(hashKey),
	)

	factory, err := a.buildSamplerFactory(cfg.Camera, pol, estmetrics.New(reg), health)
	if err != nil {
		return nil, err
	}

	store, err := a.buildEventStore(ctx, cfg.Events, db)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(cfg.Events.Buffer),
		publisher.WithLogger(logger),
	)

	svc, err := verification.NewService(pol, factory, lookup,
		verification.WithPublisher(a.publisher),
		verification.WithLogger(logger),
		verification.WithMetrics(vmetrics.New(reg)),
		verification.WithHashKey(hashKey),
		verification.WithRetention(cfg.Server.RetainFinished),
		verification.WithDefaultLane(lane),
		// one camera per process
		verification.WithExclusiveDevice(),
	)
	if err != nil {
		return nil, err
	}
	a.Verifications = svc

	h := handler.New(svc, logger, handler.WithEventLog(a.publisher, cfg.Server.AdminToken))
	a.Router = httptransport.NewRouter(httptransport.RouterDeps{
		Logger:      logger,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		DefaultLane: lane.String(),
		Health:      health,
		Handlers:    []httptransport.Registrar{h},
	})
	return a, nil
}

// Shutdown aborts active runs, drains the event buffer and closes backends.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Verifications != nil {
		a.Verifications.Shutdown(ctx)
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	return a.closeAll()
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// BuildPolicy returns the policy file over the defaults when one is set, and
// the environment values otherwise.
func BuildPolicy(cfg config.Policy) (policy.Policy, error) {
	if cfg.File != "" {
		return policy.LoadFile(cfg.File, policy.Default())
	}
	p := policy.Default()
	p.LegalAge = cfg.LegalAge
	p.ConfidentAge = cfg.ConfidentAge
	p.SamplingInterval = cfg.SamplingInterval
	p.SamplingTimeout = cfg.SamplingTimeout
	p.LookupTimeout = cfg.LookupTimeout
	p.AutoDecide = cfg.AutoDecide
	p.MaxEstimatorFailures = cfg.MaxEstimatorFailures
	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

func (a *App) buildRegistry(ctx context.Context, cfg config.Config, db *sql.DB, health map[string]httptransport.HealthCheck) (document.Registry, error) {
	switch cfg.Document.Store {
	case "redis":
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		health["redis"] = client.Health
		r := docstore.NewRedisRegistry(client.Client)
		return r, a.seed(ctx, cfg.Document, r)
	case "postgres":
		r := docstore.NewPostgresRegistry(db)
		if err := r.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		// all fixture cards or none
		return r, r.RunInTx(ctx, func(txCtx context.Context) error {
			return a.seed(txCtx, cfg.Document, r)
		})
	default:
		if cfg.Document.SeedFixture {
			return docstore.NewSeededRegistry(cfg.Document.Latency), nil
		}
		return docstore.NewInMemoryRegistry(cfg.Document.Latency), nil
	}
}

func (a *App) seed(ctx context.Context, cfg config.Document, w document.Writer) error {
	if !cfg.SeedFixture {
		return nil
	}
	cards := document.DemoCards()
	if err := document.Seed(ctx, w, cards); err != nil {
		return fmt.Errorf("seed %s registry: %w", cfg.Store, err)
	}
	a.logger.InfoContext(ctx, "document registry seeded", "store", cfg.Store, "cards", len(cards))
	return nil
}

func (a *App) buildSamplerFactory(cfg config.Camera, pol policy.Policy, m *estmetrics.Metrics, health map[string]httptransport.HealthCheck) (verification.SamplerFactory, error) {
	var (
		source    estimation.FrameSource
		estimator estimation.Estimator
	)
	switch cfg.Mode {
	case "remote":
		remote, err := adapters.NewRemoteEstimator(cfg.EstimatorURL, cfg.EstimatorTimeout,
			adapters.WithRemoteLogger(a.logger))
		if err != nil {
			return nil, err
		}
		health["estimator"] = remote.HealthCheck
		estimator = remote
		source = adapters.NewHTTPFrameSource(cfg.EstimatorURL, pol.SamplingInterval, cfg.EstimatorTimeout, a.logger)
	default:
		camera := adapters.NewScriptedCamera(cfg.ScriptBrackets...)
		a.Camera = camera
		source, estimator = camera, camera
	}

	return func() (verification.Sampler, error) {
		s, err := estimation.New(source, estimator, pol,
			estimation.WithLogger(a.logger),
			estimation.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	}, nil
}

func (a *App) buildEventStore(ctx context.Context, cfg config.Events, db *sql.DB) (events.Store, error) {
	stores := events.MultiStore{}
	if cfg.Persist {
		pg := eventpg.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		stores = append(stores, pg)
	} else {
		stores = append(stores, eventmemory.NewInMemoryStore())
	}

	if len(cfg.KafkaBrokers) > 0 {
		client, err := kafka.NewClient(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		if err := kafka.EnsureTopic(ctx, client, cfg.KafkaTopic, kafkaPartitions, kafkaReplication); err != nil {
			return nil, err
		}
		forwarder, err := kafka.New(client, cfg.KafkaTopic, kafka.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		stores = append(stores, forwarder)
	}
	return stores, nil
}
