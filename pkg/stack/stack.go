// Package stack assembles the memory services described by a config.Config:
// registry, audit sink, metrics, CRUD service, retrieval, pruning and session
// recording.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/audit/kafka"
	"github.com/papercomputeco/mnemo/pkg/audit/logsink"
	"github.com/papercomputeco/mnemo/pkg/audit/nop"
	"github.com/papercomputeco/mnemo/pkg/audit/worker"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/prune"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/service"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/tool"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// Audit providers accepted in audit.provider.
const (
	AuditLog   = "log"
	AuditKafka = "kafka"
	AuditNop   = "nop"
)

// Options configures New.
type Options struct {
	Config *config.Config

	// ResolvePath anchors relative data paths in the .mnemo/ directory.
	ResolvePath func(string) string

	// Audit overrides the sink built from the [audit] section. It is still
	// wrapped in the worker pool.
	Audit audit.Sink

	// Embedder and VectorDriver override the ones built from config.
	Embedder     embeddings.Embedder
	VectorDriver vector.VectorDriver

	Metrics *metrics.Recorder
	Now     func() time.Time
	Logger  *slog.Logger
}

// Stack holds every assembled component. Close releases the stores and
// drains the audit pool.
type Stack struct {
	Config    *config.Config
	Registry  *registry.Registry
	Audit     *worker.Pool
	Metrics   *metrics.Recorder
	Service   *service.Service
	Tool      *tool.Handler
	Retrieval *retrieval.Service
	Injector  *retrieval.Injector
	Pruner    *prune.Pruner
	Reflector *session.Reflector
	Recorder  *session.Recorder
}

// New builds a Stack. On error every component already built is closed.
func New(ctx context.Context, o Options) (*Stack, error) {
	if o.Config == nil {
		return nil, errors.New("config is required")
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	cfg := o.Config

	reg, err := registry.NewFromConfig(ctx, registry.FactoryOptions{
		Config:       cfg,
		ResolvePath:  o.ResolvePath,
		Embedder:     o.Embedder,
		VectorDriver: o.VectorDriver,
		Logger:       o.Logger,
	})
	if err != nil {
		return nil, err
	}

	sink := o.Audit
	if sink == nil {
		sink, err = NewAuditSink(cfg.Audit, o.Logger)
		if err != nil {
			return nil, errors.Join(err, reg.Close())
		}
	}

	pool, err := worker.NewPool(&worker.Config{
		Sink:       sink,
		NumWorkers: cfg.Audit.Workers,
		QueueSize:  cfg.Audit.QueueSize,
		Logger:     o.Logger,
	})
	if err != nil {
		return nil, errors.Join(err, sink.Close(), reg.Close())
	}

	s := &Stack{
		Config:   cfg,
		Registry: reg,
		Audit:    pool,
		Metrics:  o.Metrics,
	}

	if err := s.build(o); err != nil {
		return nil, errors.Join(err, s.Close())
	}

	return s, nil
}

func (s *Stack) build(o Options) error {
	cfg := s.Config
	var err error

	s.Service, err = service.New(service.Config{
		Registry:        s.Registry,
		Metrics:         s.Metrics,
		Audit:           s.Audit,
		DefaultPageSize: int(cfg.Memory.DefaultPageSize),
		MaxPageSize:     int(cfg.Memory.MaxPageSize),
		BulkLimit:       int(cfg.Memory.BulkLimit),
		Now:             o.Now,
		Logger:          o.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating memory service: %w", err)
	}

	s.Tool, err = tool.NewHandler(s.Service)
	if err != nil {
		return err
	}

	s.Retrieval, err = retrieval.New(retrieval.Config{
		Registry:     s.Registry,
		Metrics:      s.Metrics,
		Audit:        s.Audit,
		DefaultLimit: int(cfg.Memory.DefaultPageSize),
		MaxLimit:     int(cfg.Memory.MaxPageSize),
		Logger:       o.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating retrieval service: %w", err)
	}

	s.Injector = retrieval.NewInjector(retrieval.InjectorConfig{
		MaxChars:         int(cfg.Injector.MaxChars),
		PerEntryMaxChars: int(cfg.Injector.PerEntryMaxChars),
	})

	s.Pruner, err = prune.New(prune.Config{
		Registry:   s.Registry,
		MaxEntries: int(cfg.Memory.MaxEntriesPerNamespace),
		Metrics:    s.Metrics,
		Audit:      s.Audit,
		Now:        o.Now,
		Logger:     o.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating pruner: %w", err)
	}

	s.Reflector, err = session.NewReflector(session.ReflectorConfig{
		Service:  s.Service,
		MaxChars: int(cfg.Session.ReflectionMaxChars),
		Audit:    s.Audit,
		Logger:   o.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating reflector: %w", err)
	}

	s.Recorder, err = session.NewRecorder(session.RecorderConfig{
		Service:             s.Service,
		Reflector:           s.Reflector,
		Pruner:              s.Pruner,
		MaxLogChars:         int(cfg.Session.MaxLogChars),
		CompactionThreshold: int(cfg.Session.CompactionThreshold),
		ReflectionInterval:  time.Duration(cfg.Session.ReflectionIntervalSeconds) * time.Second,
		Audit:               s.Audit,
		Now:                 o.Now,
		Logger:              o.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating session recorder: %w", err)
	}

	return nil
}

// Close drains the audit pool, then closes every store.
func (s *Stack) Close() error {
	var errs []error
	if s.Audit != nil {
		errs = append(errs, s.Audit.Close())
	}
	if s.Registry != nil {
		errs = append(errs, s.Registry.Close())
	}
	return errors.Join(errs...)
}

// NewAuditSink builds the sink named by c.Provider.
func NewAuditSink(c config.AuditConfig, logger *slog.Logger) (audit.Sink, error) {
	switch c.Provider {
	case AuditLog, "":
		return logsink.NewSink(logger), nil
	case AuditKafka:
		return kafka.NewSink(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
			Logger:  logger,
		})
	case AuditNop:
		return nop.NewSink(), nil
	default:
		return nil, fmt.Errorf("unsupported audit provider: %q", c.Provider)
	}
}
