package app

import (
	"context"
	"os"

	"github.com/doeshing/sage-go/internal/application/consensus"
	"github.com/doeshing/sage-go/internal/application/consult"
	"github.com/doeshing/sage-go/internal/application/doctor"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/infrastructure/cache"
	"github.com/doeshing/sage-go/internal/infrastructure/config"
	"github.com/doeshing/sage-go/internal/infrastructure/executor"
	"github.com/doeshing/sage-go/internal/infrastructure/normalize"
	"github.com/doeshing/sage-go/internal/infrastructure/progress"
	"github.com/doeshing/sage-go/internal/infrastructure/registry"
	"github.com/doeshing/sage-go/internal/infrastructure/resolver"
	"github.com/doeshing/sage-go/internal/infrastructure/security"
	"github.com/doeshing/sage-go/internal/pkg/logger"
	"github.com/doeshing/sage-go/internal/ports"
)

// Options controls how the container is assembled.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         ports.Logger

	Registry       *registry.Registry
	Prober         *registry.Prober
	Resolver       *resolver.Resolver
	FlagPolicy     *security.FlagPolicy
	Progress       *progress.Emitter
	ConsultService *consult.Service
	DoctorService  *doctor.Service

	// CacheStore is nil when caching is disabled or the backend failed to open.
	CacheStore ports.CacheRepository
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(os.Stderr, level, cfg.Logging.Format)

	policy, err := security.NewFlagPolicy(cfg.Security.DeniedFlags)
	if err != nil {
		return nil, err
	}

	providers := registry.New(cfg)
	prober := registry.NewProber()
	models := resolver.New(cfg)
	emitter := progress.NewEmitter(log)

	var store ports.CacheRepository
	if cfg.Cache.IsEnabled() {
		store, err = cache.Open(cfg)
		if err != nil {
			log.Warn("cache unavailable, continuing without it", map[string]interface{}{
				"backend": cfg.GetCacheBackend(),
				"error":   err.Error(),
			})
			store = nil
		}
	}

	normalizer := normalize.New()
	orchestrator := consult.NewOrchestrator(
		cfg,
		executor.NewCLIExecutor(policy, normalizer, log),
		prober,
		models,
		normalizer,
		emitter,
		log,
	)

	consultService := &consult.Service{
		Registry:     providers,
		Resolver:     models,
		Orchestrator: orchestrator,
		Builder:      consensus.FromConfig(cfg),
		Progress:     emitter,
		Logger:       log,
		CacheTTL:     cfg.GetCacheTTL(),
		MinRequired:  cfg.GetMinRequired(),
	}
	if store != nil {
		consultService.Cache = store
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Prober:         prober,
		Flags:          policy,
	}
	if store != nil {
		doctorService.Cache = store
	}

	return &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Registry:       providers,
		Prober:         prober,
		Resolver:       models,
		FlagPolicy:     policy,
		Progress:       emitter,
		ConsultService: consultService,
		DoctorService:  doctorService,
		CacheStore:     store,
	}, nil
}

// Close releases resources held by the cache backend.
func (c *Container) Close() error {
	if closer, ok := c.CacheStore.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
