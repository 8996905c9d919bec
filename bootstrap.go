package corebind

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ContainerConfig is the container-level portion of a Profile.
type ContainerConfig struct {
	CacheDir                   string
	Strict                     bool
	StrictInjection            bool
	Debug                      bool
	LazyDefault                bool
	MaxResolutionDepth         int           `validate:"gte=0"`
	ResolutionTimeout          time.Duration `validate:"gte=0"`
	AllowPostSealRegistration  bool
}

// TelemetryConfig is the telemetry portion of a Profile.
type TelemetryConfig struct {
	Enabled      bool
	SamplingRate float64 `validate:"gte=0,lte=1"`
	TrackCPU     bool
	TrackMemory  bool
	ReportErrors bool
}

// Profile bundles a ContainerConfig and TelemetryConfig as the unit a
// Bootstrap call consumes.
type Profile struct {
	Container ContainerConfig
	Telemetry TelemetryConfig
}

// ProductionProfile: strict on, debug off, sampling 0.1.
func ProductionProfile() Profile {
	return Profile{
		Container: ContainerConfig{Strict: true, Debug: false, MaxResolutionDepth: 50},
		Telemetry: TelemetryConfig{Enabled: true, SamplingRate: 0.1, ReportErrors: true},
	}
}

// DevelopmentProfile: strict off, debug on, sampling 1.0.
func DevelopmentProfile() Profile {
	return Profile{
		Container: ContainerConfig{Strict: false, Debug: true, MaxResolutionDepth: 50},
		Telemetry: TelemetryConfig{Enabled: true, SamplingRate: 1.0, ReportErrors: true},
	}
}

// TestingProfile: cache off, telemetry off, depth low.
func TestingProfile() Profile {
	return Profile{
		Container: ContainerConfig{Strict: false, Debug: false, MaxResolutionDepth: 10},
		Telemetry: TelemetryConfig{Enabled: false},
	}
}

// LoadProfileFromEnv overlays process environment variables onto base,
// loading a .env file first via godotenv if one is present in the working
// directory (a no-op, non-fatal step when none exists).
func LoadProfileFromEnv(base Profile) Profile {
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("COREBIND_STRICT"); ok {
		base.Container.Strict = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("COREBIND_DEBUG"); ok {
		base.Container.Debug = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("COREBIND_CACHE_DIR"); ok {
		base.Container.CacheDir = v
	}
	if v, ok := os.LookupEnv("COREBIND_MAX_RESOLUTION_DEPTH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			base.Container.MaxResolutionDepth = n
		}
	}
	if v, ok := os.LookupEnv("COREBIND_SAMPLING_RATE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			base.Telemetry.SamplingRate = f
		}
	}
	return base
}

// DependencyEdge is one edge reported by an ExternalDefinitionSource,
// naming the service a given service depends on.
type DependencyEdge struct {
	Service ServiceID
}

// ExternalDependencyGraph is the adjacency form GetDependencyGraph reports:
// each ServiceID mapped to the edges it depends on.
type ExternalDependencyGraph map[ServiceID][]DependencyEdge

// DependentServiceSet is the result of GetDependentServices: every service
// that declares id among its dependencies.
type DependentServiceSet struct {
	Services []ServiceID
}

// Count reports how many services depend on the queried id.
func (s DependentServiceSet) Count() int { return len(s.Services) }

// ExternalDefinitionSource is the minimal surface Bootstrap reads from when
// a caller wants bindings loaded from an external store (e.g. a query
// builder's own service catalog). Step 3 calls FindAll, GetDependencyGraph,
// DetectCircularDependencies, GetServiceDependencies and
// GetDependentServices; Bootstrap does not call FindByID. The graph methods
// let Bootstrap reject a cyclic external catalog before a single definition
// from it is ever registered.
type ExternalDefinitionSource interface {
	FindAll() ([]ServiceDefinition, error)
	FindByID(id ServiceID) (*ServiceDefinition, error)
	GetServiceDependencies(id ServiceID) ([]DependencyEdge, error)
	GetDependencyGraph() (ExternalDependencyGraph, error)
	DetectCircularDependencies(graph ExternalDependencyGraph) ([][]ServiceID, error)
	GetDependentServices(id ServiceID) (DependentServiceSet, error)
}

// BootstrapOption customizes a Bootstrap call.
type BootstrapOption func(*bootstrapOptions)

type bootstrapOptions struct {
	source    ExternalDefinitionSource
	telemetry TelemetrySink
	configure func(Registrar) error
}

// WithExternalSource supplies an ExternalDefinitionSource read during step 3.
func WithExternalSource(source ExternalDefinitionSource) BootstrapOption {
	return func(o *bootstrapOptions) { o.source = source }
}

// WithTelemetrySink installs sink before step 5 emits bootstrap_completed.
func WithTelemetrySink(sink TelemetrySink) BootstrapOption {
	return func(o *bootstrapOptions) { o.telemetry = sink }
}

// WithRegistration runs configure against the container's Registrar after
// step 2 registers core infrastructure and before the external source (if
// any) is consulted.
func WithRegistration(configure func(Registrar) error) BootstrapOption {
	return func(o *bootstrapOptions) { o.configure = configure }
}

// Bootstrap runs the five-step sequence of spec.md §4.11: create the store
// and scope manager, register core infrastructure, optionally load
// definitions from an external source, validate, then initialize telemetry
// and emit bootstrap_completed.
func Bootstrap(ctx context.Context, profile Profile, opts ...BootstrapOption) (*Container, error) {
	o := &bootstrapOptions{}
	for _, opt := range opts {
		opt(o)
	}

	// 1. Create a fresh DefinitionStore and ScopeManager honoring the profile.
	c := NewContainer(profile.Container)
	reg := c.AsRegistrar()

	// 2. Register core infrastructure (cache, logger) as singletons.
	if err := reg.Instance(cacheServiceID, c.cache).Tags("internal").Err(); err != nil {
		return nil, fmt.Errorf("corebind: bootstrap: register cache: %w", err)
	}
	if err := reg.Instance(loggerServiceID, c.logger).Tags("internal").Err(); err != nil {
		return nil, fmt.Errorf("corebind: bootstrap: register logger: %w", err)
	}

	if o.configure != nil {
		if err := o.configure(reg); err != nil {
			return nil, fmt.Errorf("corebind: bootstrap: configure: %w", err)
		}
	}

	// 3. Optionally load additional ServiceDefinition rows from an external
	// source and register them, rejecting a cyclic external catalog before
	// any of its definitions reach the store.
	if o.source != nil {
		defs, err := o.source.FindAll()
		if err != nil {
			return nil, fmt.Errorf("corebind: bootstrap: external source: %w", err)
		}

		graph, err := o.source.GetDependencyGraph()
		if err != nil {
			return nil, fmt.Errorf("corebind: bootstrap: external source dependency graph: %w", err)
		}
		cycles, err := o.source.DetectCircularDependencies(graph)
		if err != nil {
			return nil, fmt.Errorf("corebind: bootstrap: external source cycle detection: %w", err)
		}
		if len(cycles) > 0 {
			return nil, fmt.Errorf("corebind: bootstrap: external source reports circular dependencies: %v", cycles)
		}

		for _, def := range defs {
			if len(def.Dependencies) == 0 {
				if edges, depErr := o.source.GetServiceDependencies(def.ID); depErr == nil {
					for _, e := range edges {
						def.Dependencies = append(def.Dependencies, e.Service)
					}
				}
			}
			if _, err := c.store.Register(def); err != nil {
				return nil, fmt.Errorf("corebind: bootstrap: register %s: %w", def.ID, err)
			}
			if dependents, depErr := o.source.GetDependentServices(def.ID); depErr == nil {
				c.logger.Debug("external definition registered",
					zap.String("id", string(def.ID)),
					zap.Int("dependents", dependents.Count()))
			}
		}
	}

	// 4. Run the validator; fail fast on any error.
	v := NewValidator()
	reports := v.Validate(c.store)
	for _, r := range reports {
		if !r.IsValid {
			return nil, fmt.Errorf("corebind: bootstrap: validation failed for %s: %+v", r.ServiceID, r.Errors)
		}
	}

	// 5. Initialize the telemetry sink and emit bootstrap_completed.
	sink := o.telemetry
	if sink == nil {
		sink = NoopSink{}
	}
	if profile.Telemetry.Enabled {
		sink = NewSamplingSink(sink, profile.Telemetry.SamplingRate)
	}
	c.SetTelemetry(sink)
	c.Seal()
	c.emit(metricBootstrapCompleted, 1)

	return c, nil
}

const (
	cacheServiceID  ServiceID = "corebind.internal.cache"
	loggerServiceID ServiceID = "corebind.internal.logger"
)
