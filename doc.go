// Package corebind provides a dependency-injection container runtime: a
// registry that learns how to construct application objects once, caches
// that knowledge as a reusable prototype, and resolves instances on demand
// under three lifetime policies while honoring contextual overrides,
// validation, and lifecycle hooks.
//
// # Overview
//
// corebind separates registration from construction:
//
//   - A Registrar records bindings (Bind/Singleton/Scoped/Instance), tags,
//     aliases, contextual overrides, decorators, and resolving callbacks.
//   - A Container's analyzer inspects a constructor function's signature
//     once and caches the resulting ServicePrototype.
//   - A Resolver walks the binding graph, consulting the prototype and the
//     active scope to build, inject, decorate, and cache an instance.
//   - A Validator runs pre-flight checks over the whole registry before
//     the container seals.
//
// # Basic usage
//
//	profile := corebind.DevelopmentProfile()
//	c, err := corebind.Bootstrap(context.Background(), profile,
//		corebind.WithRegistration(func(r corebind.Registrar) error {
//			return r.Singleton(corebind.IDFor[*Logger](), corebind.ConcreteType(NewLogger)).Err()
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	logger, err := c.Resolve(corebind.IDFor[*Logger]())
//
// # Lifetimes
//
// Singleton instances are shared for the container's lifetime. Scoped
// instances are shared within one child scope, created with BeginScope and
// released with EndScope. Transient instances are never cached.
//
// # Scopes
//
//	req := c.BeginScope()
//	defer c.EndScope(req)
//	session, err := c.ResolveScoped(req, sessionID)
//
// # Contextual bindings
//
//	r.When(reportServiceID).Needs(loggerID).Give(corebind.ConcreteFromInstance(NullLogger{}))
//
// # Thread safety
//
// A Container is safe for concurrent use once Bootstrap (or Seal) has run.
// Singleton and scoped construction are serialized per (scope, ServiceID)
// so concurrent resolvers racing on a cold cache share one construction.
package corebind
