package corebind

import (
	"strings"
	"sync"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/relaycore/corebind/internal/analyzer"
	"github.com/relaycore/corebind/internal/protocache"
)

// Container is the top-level orchestration object: the definition store,
// scope manager, analyzer, prototype cache, and resolution engine bound
// together behind the Registrar and Resolver facades.
type Container struct {
	store      *DefinitionStore
	scopes     *ScopeManager
	analyzer   *analyzer.Analyzer
	cache      *protocache.Cache
	lifecycles *lifecycleRegistry
	telemetry  TelemetrySink
	logger     *zap.Logger
	config     ContainerConfig

	digRoot     *dig.Container
	digMu       sync.Mutex
	digScopes   map[string]*dig.Scope
	digProvided map[string]bool
}

// NewContainer assembles an empty, unsealed Container from config. Most
// callers should use Bootstrap instead, which also runs the validator and
// registers core infrastructure singletons.
func NewContainer(config ContainerConfig) *Container {
	if config.MaxResolutionDepth <= 0 {
		config.MaxResolutionDepth = 50
	}
	scopes := NewScopeManager()
	c := &Container{
		store:     NewDefinitionStore(),
		scopes:    scopes,
		analyzer:  analyzer.New(),
		cache:     protocache.New(config.CacheDir),
		config:    config,
		telemetry: NoopSink{},
		digRoot:     dig.New(),
		digScopes:   make(map[string]*dig.Scope),
		digProvided: make(map[string]bool),
	}
	c.lifecycles = newLifecycleRegistry(scopes.Root())
	if config.Debug {
		l, err := zap.NewDevelopment()
		if err == nil {
			c.logger = l
		}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Definitions returns the underlying DefinitionStore, an escape hatch for
// tooling that needs direct access to registered bindings.
func (c *Container) Definitions() *DefinitionStore { return c.store }

// Scopes returns the underlying ScopeManager, an escape hatch for tooling.
func (c *Container) Scopes() *ScopeManager { return c.scopes }

// SetTelemetry installs sink as the container's telemetry target.
func (c *Container) SetTelemetry(sink TelemetrySink) {
	if sink == nil {
		sink = NoopSink{}
	}
	c.telemetry = sink
}

// Logger returns the bootstrap/debug logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Seal transitions the definition store to read-mostly mode. After Seal,
// registration methods fail with ErrContainerSealed unless
// AllowPostSealRegistration was set in ContainerConfig.
func (c *Container) Seal() {
	c.store.Seal(c.config.AllowPostSealRegistration)
}

// Sealed reports whether Seal has run.
func (c *Container) Sealed() bool { return c.store.Sealed() }

// BeginScope creates and returns a new child scope for request/job-scoped
// resolution.
func (c *Container) BeginScope() *Scope {
	c.emit(metricScopeBegin, 1)
	return c.scopes.BeginScope()
}

// EndScope ends sc, disposing its instances in reverse insertion order.
func (c *Container) EndScope(sc *Scope) error {
	c.emit(metricScopeEnd, 1)
	err := c.scopes.EndScope(sc)
	c.digMu.Lock()
	delete(c.digScopes, sc.ID)
	prefix := sc.ID + "/"
	for k := range c.digProvided {
		if strings.HasPrefix(k, prefix) {
			delete(c.digProvided, k)
		}
	}
	c.digMu.Unlock()
	return err
}

// Close ends the root scope, disposing every singleton, and is the final
// step of a Container's lifetime.
func (c *Container) Close() error {
	return c.scopes.CloseContainer()
}
