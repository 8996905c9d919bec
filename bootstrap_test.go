package corebind

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapRegistersCoreInfrastructure(t *testing.T) {
	c, err := Bootstrap(context.Background(), TestingProfile())
	require.NoError(t, err)
	require.True(t, c.Sealed())

	_, err = c.Resolve(cacheServiceID)
	require.NoError(t, err)
	_, err = c.Resolve(loggerServiceID)
	require.NoError(t, err)
}

func TestBootstrapRunsUserRegistration(t *testing.T) {
	c, err := Bootstrap(context.Background(), TestingProfile(), WithRegistration(func(reg Registrar) error {
		return reg.Singleton("widget", ConcreteFromFactory(func(Resolver) (any, error) {
			return "hello", nil
		})).Tags("core").Err()
	}))
	require.NoError(t, err)

	v, err := c.Resolve("widget")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestBootstrapFailsValidationForMissingDependency(t *testing.T) {
	_, err := Bootstrap(context.Background(), TestingProfile(), WithRegistration(func(reg Registrar) error {
		return reg.Singleton("widget", ConcreteFromInstance("x")).
			Tags("core").
			DependsOn("missing-dep").
			Err()
	}))
	require.Error(t, err)
}

func TestBootstrapSealsContainer(t *testing.T) {
	c, err := Bootstrap(context.Background(), TestingProfile())
	require.NoError(t, err)

	reg := c.AsRegistrar()
	regErr := reg.Singleton("late", ConcreteFromInstance("x")).Tags("core").Err()
	require.Error(t, regErr)
}

func TestLoadProfileFromEnvDoesNotPanicWithoutEnvFile(t *testing.T) {
	p := LoadProfileFromEnv(DevelopmentProfile())
	require.True(t, p.Container.Debug)
}

// fakeExternalSource is a minimal, in-memory ExternalDefinitionSource used
// to exercise Bootstrap's step 3 wiring.
type fakeExternalSource struct {
	defs   []ServiceDefinition
	cycles [][]ServiceID
}

func (f *fakeExternalSource) FindAll() ([]ServiceDefinition, error) { return f.defs, nil }

func (f *fakeExternalSource) FindByID(id ServiceID) (*ServiceDefinition, error) {
	for _, d := range f.defs {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, nil
}

func (f *fakeExternalSource) GetServiceDependencies(id ServiceID) ([]DependencyEdge, error) {
	for _, d := range f.defs {
		if d.ID == id {
			edges := make([]DependencyEdge, len(d.Dependencies))
			for i, dep := range d.Dependencies {
				edges[i] = DependencyEdge{Service: dep}
			}
			return edges, nil
		}
	}
	return nil, nil
}

func (f *fakeExternalSource) GetDependencyGraph() (ExternalDependencyGraph, error) {
	graph := make(ExternalDependencyGraph, len(f.defs))
	for _, d := range f.defs {
		edges, _ := f.GetServiceDependencies(d.ID)
		graph[d.ID] = edges
	}
	return graph, nil
}

func (f *fakeExternalSource) DetectCircularDependencies(ExternalDependencyGraph) ([][]ServiceID, error) {
	return f.cycles, nil
}

func (f *fakeExternalSource) GetDependentServices(id ServiceID) (DependentServiceSet, error) {
	var dependents []ServiceID
	for _, d := range f.defs {
		for _, dep := range d.Dependencies {
			if dep == id {
				dependents = append(dependents, d.ID)
			}
		}
	}
	return DependentServiceSet{Services: dependents}, nil
}

func TestBootstrapLoadsDefinitionsFromExternalSource(t *testing.T) {
	source := &fakeExternalSource{
		defs: []ServiceDefinition{
			{ID: "widget", Concrete: ConcreteFromInstance("hello"), Lifetime: Singleton, Tags: []string{"core"}},
		},
	}

	c, err := Bootstrap(context.Background(), TestingProfile(), WithExternalSource(source))
	require.NoError(t, err)

	v, err := c.Resolve("widget")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestBootstrapRejectsCyclicExternalSource(t *testing.T) {
	source := &fakeExternalSource{
		defs: []ServiceDefinition{
			{ID: "a", Concrete: ConcreteFromInstance("x"), Lifetime: Singleton, Tags: []string{"core"}, Dependencies: []ServiceID{"b"}},
			{ID: "b", Concrete: ConcreteFromInstance("y"), Lifetime: Singleton, Tags: []string{"core"}, Dependencies: []ServiceID{"a"}},
		},
		cycles: [][]ServiceID{{"a", "b"}},
	}

	_, err := Bootstrap(context.Background(), TestingProfile(), WithExternalSource(source))
	require.Error(t, err)
}
